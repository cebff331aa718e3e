// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package study

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/UOSAN/message-automation/internal/apptoto"
	"github.com/UOSAN/message-automation/internal/config"
	"github.com/UOSAN/message-automation/internal/eventindex"
	"github.com/UOSAN/message-automation/internal/models"
)

// fakeRecords serves fixed participant records and counts lookups.
type fakeRecords struct {
	recs  map[string]*models.ParticipantRecord
	calls int
}

func (f *fakeRecords) GetParticipant(_ context.Context, id string) (*models.ParticipantRecord, error) {
	f.calls++
	rec, ok := f.recs[id]
	if !ok {
		return nil, fmt.Errorf("Session 0 for subject %s not found", id)
	}
	copied := *rec
	return &copied, nil
}

// fakeProvider records every provider call.
type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	posted  []apptoto.Event
	nextID  int64
	events  []apptoto.Event
	deleted []int64
}

func (f *fakeProvider) Calendar() string  { return "ASH" }
func (f *fakeProvider) CalendarID() int64 { return 0 }

func (f *fakeProvider) GetContact(context.Context, string) (*apptoto.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil, nil
}

func (f *fakeProvider) PostContact(_ context.Context, c apptoto.Contact) (*apptoto.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &c, nil
}

func (f *fakeProvider) PutContact(_ context.Context, c apptoto.Contact) (*apptoto.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &c, nil
}

func (f *fakeProvider) GetEventsByContact(context.Context, string, apptoto.EventFilter) ([]apptoto.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]apptoto.Event(nil), f.events...), nil
}

func (f *fakeProvider) PostEvents(_ context.Context, events []apptoto.Event) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	ids := make([]int64, len(events))
	for i := range events {
		f.nextID++
		ids[i] = f.nextID
	}
	f.posted = append(f.posted, events...)
	return ids, nil
}

func (f *fakeProvider) PutEvents(context.Context, []apptoto.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeProvider) DeleteEvent(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.deleted = append(f.deleted, id)
	return nil
}

const catalogCSV = `Message,ConditionNo,Value1,UO_ID
Think of a friend,3,relationships,V001
Laugh today,3,humor,V002
Go for a run,3,athletic,V003
Paint something,3,creativity,V004
Picture tomorrow,2,,H001
Breathe slowly,1,,C001
`

func date(s string) *civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func testRecord() *models.ParticipantRecord {
	wake := civil.Time{Hour: 7}
	sleep := civil.Time{Hour: 22}
	return &models.ParticipantRecord{
		ID:            "ASH001",
		Phone:         "5415550100",
		Email:         "p1@example.com",
		Initials:      "AB",
		TimeZone:      models.TimeZonePacific,
		WakeTime:      &wake,
		SleepTime:     &sleep,
		QuitDate:      date("2024-06-10"),
		Session0Date:  date("2024-05-27"),
		Session1Date:  date("2024-06-03"),
		Condition:     models.ConditionValues,
		MessageValues: []models.CodedValue{models.ValueHumor, models.ValueAthletic},
		TaskValues:    []models.CodedValue{models.ValueHumor, models.ValueAthletic},
	}
}

type fixture struct {
	svc      *Service
	records  *fakeRecords
	provider *fakeProvider
	index    *eventindex.Store
	dir      string
}

func newFixture(t *testing.T, guard bool, recs ...*models.ParticipantRecord) *fixture {
	t.Helper()
	dir := t.TempDir()
	catalog := filepath.Join(dir, "messages.csv")
	if err := os.WriteFile(catalog, []byte(catalogCSV), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Content.MessageFile = catalog
	cfg.Content.DownloadDir = dir
	cfg.Protocol.GuardDuplicates = guard

	idx, err := eventindex.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	records := &fakeRecords{recs: map[string]*models.ParticipantRecord{}}
	for _, r := range recs {
		records.recs[r.ID] = r
	}
	provider := &fakeProvider{}

	svc, err := NewService(cfg, records, provider,
		WithIndex(idx),
		WithRand(func() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }),
		WithClock(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }),
	)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return &fixture{svc: svc, records: records, provider: provider, index: idx, dir: dir}
}

func TestGenerate_EndToEnd(t *testing.T) {
	f := newFixture(t, false, testRecord())

	res, err := f.svc.Generate(context.Background(), "ASH001")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Posted != 328 || len(f.provider.posted) != 328 {
		t.Errorf("posted = %d (provider saw %d), want 328", res.Posted, len(f.provider.posted))
	}
	if res.Message != "Posted 328 messages for ASH001" {
		t.Errorf("Message = %q", res.Message)
	}

	first := f.provider.posted[0]
	if first.Calendar != "ASH" || first.TimeZone != "America/Los_Angeles" {
		t.Errorf("first event = %+v", first)
	}
	if !strings.HasSuffix(first.StartTime, "-07:00") {
		t.Errorf("StartTime %q not in Pacific daylight time", first.StartTime)
	}

	file, err := os.Open(filepath.Join(f.dir, "ASH001.csv"))
	if err != nil {
		t.Fatalf("pool file not written: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(rows[0], ",") != "UO_ID,Message" {
		t.Errorf("pool header = %v", rows[0])
	}
	for _, row := range rows[1:] {
		if row[0] != "V002" && row[0] != "V003" {
			t.Fatalf("pool row %v does not match the participant's values", row)
		}
	}

	has, _ := f.index.Has(context.Background(), "ASH001", models.PhaseGenerate)
	if !has {
		t.Error("generated events not recorded in the event index")
	}
}

func TestGenerate_MissingSleepTimeMakesNoProviderCalls(t *testing.T) {
	rec := testRecord()
	rec.SleepTime = nil
	f := newFixture(t, false, rec)

	_, err := f.svc.Generate(context.Background(), "ASH001")
	var pe *models.PreconditionError
	if !errors.As(err, &pe) || !pe.Has("sleeptime") {
		t.Fatalf("error = %v, want precondition naming sleeptime", err)
	}
	if f.provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0", f.provider.calls)
	}
}

func TestInvalidParticipantID(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.DiaryOne(context.Background(), "ash1")
	if !errors.Is(err, ErrInvalidParticipantID) {
		t.Errorf("error = %v, want ErrInvalidParticipantID", err)
	}
	if f.records.calls != 0 {
		t.Errorf("record lookups = %d, want 0", f.records.calls)
	}
}

func TestDiaryOne_GuardRefusesRepost(t *testing.T) {
	f := newFixture(t, true, testRecord())
	ctx := context.Background()

	res, err := f.svc.DiaryOne(ctx, "ASH001")
	if err != nil {
		t.Fatalf("DiaryOne() error = %v", err)
	}
	if res.Posted != 4 {
		t.Errorf("Posted = %d, want 4", res.Posted)
	}

	_, err = f.svc.DiaryOne(ctx, "ASH001")
	if !errors.Is(err, ErrAlreadyPosted) {
		t.Errorf("second DiaryOne() error = %v, want ErrAlreadyPosted", err)
	}
	if len(f.provider.posted) != 4 {
		t.Errorf("provider saw %d events, want 4", len(f.provider.posted))
	}
}

func TestDiaryOne_RepostAllowedWithoutGuard(t *testing.T) {
	f := newFixture(t, false, testRecord())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.svc.DiaryOne(ctx, "ASH001"); err != nil {
			t.Fatalf("DiaryOne() #%d error = %v", i+1, err)
		}
	}
	if len(f.provider.posted) != 8 {
		t.Errorf("provider saw %d events, want 8", len(f.provider.posted))
	}
}

func TestDiaryOne_WithoutWakeTimeOrQuitDate(t *testing.T) {
	rec := testRecord()
	rec.WakeTime = nil
	rec.QuitDate = nil
	f := newFixture(t, false, rec)

	res, err := f.svc.DiaryOne(context.Background(), "ASH001")
	if err != nil {
		t.Fatalf("DiaryOne() error = %v", err)
	}
	if res.Posted != 4 || len(f.provider.posted) != 4 {
		t.Errorf("posted = %d (provider saw %d), want 4", res.Posted, len(f.provider.posted))
	}
}

func TestDiaryFour_MissingSessionTwo(t *testing.T) {
	f := newFixture(t, false, testRecord())

	res, err := f.svc.DiaryFour(context.Background(), "ASH001")
	if err != nil {
		t.Fatalf("DiaryFour() error = %v", err)
	}
	if res.Posted != 0 || f.provider.calls != 0 {
		t.Errorf("posted=%d calls=%d, want nothing posted", res.Posted, f.provider.calls)
	}
	if len(res.Statuses) != 1 || !res.Statuses[0].Missing {
		t.Errorf("Statuses = %+v, want one missing round", res.Statuses)
	}
	if !strings.Contains(res.Message, "session 2 date not recorded") {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestDeleteMessages_ForgetsIndexedIDs(t *testing.T) {
	f := newFixture(t, false, testRecord())
	ctx := context.Background()

	if _, err := f.svc.DiaryOne(ctx, "ASH001"); err != nil {
		t.Fatal(err)
	}
	f.provider.events = []apptoto.Event{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}

	res, err := f.svc.DeleteMessages(ctx, "ASH001")
	if err != nil {
		t.Fatalf("DeleteMessages() error = %v", err)
	}
	if res.Message != "Deleted 4 messages for ASH001" || len(f.provider.deleted) != 4 {
		t.Errorf("result = %+v, deleted = %v", res, f.provider.deleted)
	}
	if has, _ := f.index.Has(ctx, "ASH001", models.PhaseDiaryOne); has {
		t.Error("deleted ids still in event index")
	}
}

func TestTaskFiles(t *testing.T) {
	f := newFixture(t, false, testRecord())

	paths, err := f.svc.TaskFiles(context.Background(), "ASH001")
	if err != nil {
		t.Fatalf("TaskFiles() error = %v", err)
	}
	if len(paths) != 8 {
		t.Errorf("len(paths) = %d, want 8", len(paths))
	}
	if f.provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0", f.provider.calls)
	}
}

func TestCountResponses(t *testing.T) {
	f := newFixture(t, false, testRecord())
	f.provider.events = []apptoto.Event{{
		ID:    1,
		Title: "ASH SMS",
		Participants: []apptoto.Participant{{Conversations: []apptoto.Conversation{{
			EventParticipantID: 9,
			Messages: []apptoto.ConversationMessage{
				{EventType: apptoto.MessageSent, At: "2024-06-10T10:00:00-07:00", Content: "UO: Laugh today"},
				{EventType: apptoto.MessageReplied, At: "2024-06-10T10:02:00-07:00", Content: "ha"},
			},
		}}}},
	}}

	report, err := f.svc.CountResponses(context.Background(), "ASH001")
	if err != nil {
		t.Fatalf("CountResponses() error = %v", err)
	}
	if report.Rows != 1 || report.Summary.Total.Replied != 1 {
		t.Errorf("report = %+v", report)
	}
	data, err := os.ReadFile(report.CSVFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "V002") {
		t.Errorf("responses csv missing UO_ID:\n%s", data)
	}
	if _, err := os.Stat(report.SummaryFile); err != nil {
		t.Errorf("summary file: %v", err)
	}
}

func TestCountResponses_PrefersParticipantFile(t *testing.T) {
	f := newFixture(t, false, testRecord())
	// The catalog maps "Laugh today" to V002; the participant's own draw
	// recorded the same text under a different id.
	drawn := "UO_ID,Message\nV902,Laugh today\n"
	if err := os.WriteFile(filepath.Join(f.dir, "ASH001.csv"), []byte(drawn), 0o600); err != nil {
		t.Fatal(err)
	}
	f.provider.events = []apptoto.Event{{
		ID:    1,
		Title: "ASH SMS",
		Participants: []apptoto.Participant{{Conversations: []apptoto.Conversation{{
			EventParticipantID: 9,
			Messages: []apptoto.ConversationMessage{
				{EventType: apptoto.MessageSent, At: "2024-06-10T10:00:00-07:00", Content: "UO: Laugh today"},
			},
		}}}},
	}}

	report, err := f.svc.CountResponses(context.Background(), "ASH001")
	if err != nil {
		t.Fatalf("CountResponses() error = %v", err)
	}
	data, err := os.ReadFile(report.CSVFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "V902") || strings.Contains(string(data), "V002") {
		t.Errorf("responses csv should use the participant's UO_ID:\n%s", data)
	}
}

func TestCleanup(t *testing.T) {
	f := newFixture(t, false)
	for _, name := range []string{"a.csv", "b.csv", "keep.txt"} {
		if err := os.WriteFile(filepath.Join(f.dir, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	n, err := f.svc.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	// messages.csv lives in the same temp dir.
	if n != 3 {
		t.Errorf("removed = %d, want 3", n)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "keep.txt")); err != nil {
		t.Error("non-csv file removed")
	}
}
