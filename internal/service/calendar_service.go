package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/repository"
	"alcyxob/stride-planner/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	calendarContentType = "text/calendar; charset=utf-8"
	calendarURLExpiry   = time.Hour
)

type CalendarExport struct {
	ObjectKey string    `json:"objectKey"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
	Sessions  int       `json:"sessions"`
}

type CalendarService interface {
	ExportPlan(ctx context.Context, runnerID, planID primitive.ObjectID) (*CalendarExport, error)
}

type calendarService struct {
	log      *logger.Logger
	clock    clock.Clock
	reads    PlanReadService
	plans    repository.TrainingPlanRepository
	store    storage.FileStorage
	newKeyID func() string
}

func NewCalendarService(log *logger.Logger, clk clock.Clock, reads PlanReadService, plans repository.TrainingPlanRepository, store storage.FileStorage) CalendarService {
	return &calendarService{
		log:      log.With("component", "CalendarService"),
		clock:    clk,
		reads:    reads,
		plans:    plans,
		store:    store,
		newKeyID: uuid.NewString,
	}
}

// ExportPlan renders the plan as iCalendar, uploads it and returns a
// short-lived download link.
func (s *calendarService) ExportPlan(ctx context.Context, runnerID, planID primitive.ObjectID) (*CalendarExport, error) {
	plan, err := ownedPlan(ctx, s.plans, runnerID, planID)
	if err != nil {
		return nil, err
	}
	views, err := s.reads.Sessions(ctx, runnerID, planID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	body := RenderICS(plan, views, now)

	key := fmt.Sprintf("calendars/%s/%s/%s.ics", runnerID.Hex(), planID.Hex(), s.newKeyID())
	if err := s.store.PutObject(ctx, key, calendarContentType, body); err != nil {
		return nil, fmt.Errorf("upload calendar: %w", err)
	}
	url, err := s.store.GeneratePresignedDownloadURL(ctx, key, calendarURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign calendar: %w", err)
	}
	s.log.Info("calendar exported", "plan_id", planID.Hex(), "key", key, "sessions", len(views))
	return &CalendarExport{ObjectKey: key, URL: url, ExpiresAt: now.Add(calendarURLExpiry), Sessions: len(views)}, nil
}

// RenderICS writes one all-day VEVENT per session (RFC 5545).
func RenderICS(plan *domain.TrainingPlan, views []SessionView, now time.Time) []byte {
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		b.WriteString(foldICS(fmt.Sprintf(format, args...)))
		b.WriteString("\r\n")
	}
	stamp := now.UTC().Format("20060102T150405Z")

	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:-//stride-planner//plan export//EN")
	line("CALSCALE:GREGORIAN")
	line("X-WR-CALNAME:%s", escapeICS(plan.Name))
	for _, v := range views {
		s := v.Session
		day := s.ScheduledDate.UTC()
		line("BEGIN:VEVENT")
		line("UID:%s@stride-planner", s.ID.Hex())
		line("DTSTAMP:%s", stamp)
		line("DTSTART;VALUE=DATE:%s", day.Format("20060102"))
		line("DTEND;VALUE=DATE:%s", day.AddDate(0, 0, 1).Format("20060102"))
		line("SUMMARY:%s", escapeICS(eventSummary(s)))
		line("DESCRIPTION:%s", escapeICS(eventDescription(v)))
		line("CATEGORIES:%s", strings.ToUpper(string(s.WorkoutType)))
		switch {
		case s.Skipped:
			line("STATUS:CANCELLED")
		case s.CompletedAt != nil:
			line("STATUS:CONFIRMED")
		}
		line("END:VEVENT")
	}
	line("END:VCALENDAR")
	return []byte(b.String())
}

func eventSummary(s domain.TrainingSession) string {
	if s.TargetDistanceKm > 0 {
		return fmt.Sprintf("%s %.1f km", s.Title, s.TargetDistanceKm)
	}
	return s.Title
}

func eventDescription(v SessionView) string {
	s := v.Session
	parts := []string{
		fmt.Sprintf("Target: %.1f km, %.0f min, RPE %d", s.TargetDistanceKm, s.TargetDurationMin, s.TargetIntensity),
	}
	if v.Stage != domain.StageNone {
		parts = append(parts, "Stage: "+string(v.Stage))
	}
	if v.Phase != domain.PhaseUnknown {
		parts = append(parts, fmt.Sprintf("Cycle: %s (day %d)", v.Phase, v.DayInCycle))
	}
	if v.InReductionWindow {
		parts = append(parts, "Reduced intensity window")
	}
	if s.Description != "" {
		parts = append(parts, s.Description)
	}
	return strings.Join(parts, "\n")
}

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\n", `\n`)

func escapeICS(s string) string {
	return icsEscaper.Replace(s)
}

// foldICS splits content lines longer than 75 octets. Continuation lines
// start with a space, which counts toward their limit.
func foldICS(l string) string {
	limit := 75
	if len(l) <= limit {
		return l
	}
	var b strings.Builder
	for len(l) > limit {
		cut := limit
		// do not split a UTF-8 sequence
		for cut > 0 && l[cut]&0xC0 == 0x80 {
			cut--
		}
		b.WriteString(l[:cut])
		b.WriteString("\r\n ")
		l = l[cut:]
		limit = 74
	}
	b.WriteString(l)
	return b.String()
}
