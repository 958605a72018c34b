package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/tramites-gateway/internal/models"
	"github.com/noah-isme/tramites-gateway/pkg/config"
)

// SlaCalculator derives due dates and labels in one fixed reference timezone.
type SlaCalculator struct {
	loc         *time.Location
	nearDueDays int
}

// NewSlaCalculator constructs the calculator from SLA configuration.
func NewSlaCalculator(cfg config.SLAConfig) *SlaCalculator {
	return &SlaCalculator{loc: cfg.Location(), nearDueDays: cfg.NearDueDays}
}

// Location returns the reference timezone.
func (c *SlaCalculator) Location() *time.Location {
	return c.loc
}

// Calculate is pure: identical inputs on the same calendar day give identical results.
func (c *SlaCalculator) Calculate(rule *models.SlaRule, createdAt, now time.Time) models.SlaResult {
	if rule == nil || createdAt.IsZero() {
		return models.SlaResult{Label: models.SlaUnknown}
	}

	due := dateOf(createdAt, c.loc)
	if rule.CountOnlyWorkingDays {
		due = addWorkingDays(due, rule.ResponseDays)
	} else {
		due = due.AddDate(0, 0, rule.ResponseDays)
	}
	due = due.AddDate(0, 0, rule.GraceDays)

	remaining := daysBetween(dateOf(now, c.loc), due)

	window := rule.GraceDays
	if c.nearDueDays > 0 {
		window = c.nearDueDays
	}

	label := models.SlaOnTime
	switch {
	case remaining < 0:
		label = models.SlaOverdue
	case remaining <= window:
		label = models.SlaNearDue
	}
	return models.SlaResult{DueDate: &due, RemainingDays: &remaining, Label: label}
}

// Annotate writes the SLA fields of record using the rule book.
func (c *SlaCalculator) Annotate(record *models.Tramite, rules *SlaRuleBook, now time.Time) {
	result := c.Calculate(rules.Lookup(record.TypeID, record.TypeDesc), record.CreatedAt, now)
	record.DueDate = result.DueDate
	record.RemainingDays = result.RemainingDays
	record.SlaLabel = result.Label
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func addWorkingDays(start time.Time, days int) time.Time {
	current := start
	for added := 0; added < days; {
		current = current.AddDate(0, 0, 1)
		if wd := current.Weekday(); wd != time.Saturday && wd != time.Sunday {
			added++
		}
	}
	return current
}

// daysBetween counts calendar days, immune to DST shifts.
func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// SlaRuleBook indexes active SLA rules by code.
type SlaRuleBook struct {
	byCode map[string]models.SlaRule
}

// NewSlaRuleBook keeps only active rules.
func NewSlaRuleBook(rules []models.SlaRule) *SlaRuleBook {
	book := &SlaRuleBook{byCode: make(map[string]models.SlaRule, len(rules))}
	for _, r := range rules {
		if !r.Active {
			continue
		}
		book.byCode[ruleKey(r.Code)] = r
	}
	return book
}

// Lookup matches a rule by type id first, then by type label.
func (b *SlaRuleBook) Lookup(typeID int, typeLabel string) *models.SlaRule {
	if b == nil {
		return nil
	}
	if typeID != 0 {
		if r, ok := b.byCode[strconv.Itoa(typeID)]; ok {
			return &r
		}
	}
	if key := ruleKey(typeLabel); key != "" {
		if r, ok := b.byCode[key]; ok {
			return &r
		}
	}
	return nil
}

// Len returns the number of active rules.
func (b *SlaRuleBook) Len() int {
	if b == nil {
		return 0
	}
	return len(b.byCode)
}

func ruleKey(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
