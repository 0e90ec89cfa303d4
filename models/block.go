package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
	"gorm.io/gorm"
)

// a block range longer than this is almost certainly a typo in the dates
const maxBlockDays = 366

type Block struct {
	ID             int       `gorm:"primary_key" json:"id"`
	ProfessionalId int       `gorm:"not null;default:0;index:idx_block_day,priority:1" json:"professional_id"`
	Date           time.Time `gorm:"type:date;not null;index:idx_block_day,priority:2" json:"date"`
	StartTime      TimeOfDay `gorm:"type:char(5);not null" json:"start_time"`
	EndTime        TimeOfDay `gorm:"type:char(5);not null" json:"end_time"`
	Reason         string    `gorm:"size:255" json:"reason"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (b Block) interval() Interval {
	return Interval{
		Kind:           IntervalKindBlock,
		ProfessionalId: b.ProfessionalId,
		Start:          b.StartTime,
		End:            b.EndTime,
		ReferenceId:    b.ID,
		Reason:         b.Reason,
	}
}

func (b Block) IsGlobal() bool {
	return b.ProfessionalId == AllProfessionals
}

// NewBlock takes either explicit start and end times or full_day; omitted times are an error.
type NewBlock struct {
	ProfessionalId int        `json:"professional_id" validate:"gte=0"`
	DateFrom       string     `json:"date_from" validate:"required"`
	DateTo         string     `json:"date_to"`
	Start          *TimeOfDay `json:"start"`
	End            *TimeOfDay `json:"end"`
	FullDay        bool       `json:"full_day"`
	Reason         string     `json:"reason" validate:"max=255"`
}

// Span resolves the blocked range of each day. An end of 00:00 reads as midnight.
func (input *NewBlock) Span() (TimeOfDay, TimeOfDay, error) {
	if input.FullDay {
		if input.Start != nil || input.End != nil {
			return 0, 0, utils.ValidationErrorf("a full-day block takes no start or end time")
		}
		return Midnight, EndOfDay, nil
	}
	start, err := RequireTime("start", input.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := RequireTime("end", input.End)
	if err != nil {
		return 0, 0, err
	}
	end = normalizeBlockEnd(end)
	if end <= start {
		return 0, 0, utils.ValidationErrorf("end %s must be after start %s", end, start)
	}
	return start, end, nil
}

// BlockDays expands an inclusive date range into calendar days.
func BlockDays(from, to time.Time) ([]time.Time, error) {
	from = utils.TruncateToDay(from)
	to = utils.TruncateToDay(to)
	if to.Before(from) {
		return nil, utils.ValidationErrorf("date range ends before it starts")
	}
	days := make([]time.Time, 0)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
		if len(days) > maxBlockDays {
			return nil, utils.ValidationErrorf("date range is longer than %d days", maxBlockDays)
		}
	}
	return days, nil
}

// normalizeBlockEnd reads an end of 00:00 as "until midnight".
func normalizeBlockEnd(end TimeOfDay) TimeOfDay {
	if end == Midnight {
		return EndOfDay
	}
	return end
}

// blockScope lists the professionals whose days a block touches.
func blockScope(ctx context.Context, professionalId int) ([]int, error) {
	if professionalId != AllProfessionals {
		if _, err := GetResource[Professional](ctx, professionalId); err != nil {
			return nil, err
		}
		return []int{professionalId}, nil
	}
	professionals, err := ListProfessionals(ctx, false)
	if err != nil {
		return nil, err
	}
	ids := []int{AllProfessionals}
	for _, p := range professionals {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func dayLockKeys(professionalIds []int, days []time.Time) []string {
	keys := make([]string, 0, len(professionalIds)*len(days))
	for _, day := range days {
		for _, pid := range professionalIds {
			keys = append(keys, scheduleLockKey(pid, day))
		}
	}
	return keys
}

// checkBlockFits checks a candidate block against every schedule it touches on one day.
// A global block has to fit every professional's day.
func checkBlockFits(tx *gorm.DB, scope []int, day time.Time, start, end TimeOfDay, skipBlockIds map[int]bool) error {
	for _, pid := range scope {
		intervals, err := LoadDayIntervals(tx, pid, day, 0)
		if err != nil {
			return err
		}
		if len(skipBlockIds) > 0 {
			kept := intervals[:0]
			for _, iv := range intervals {
				if iv.Kind == IntervalKindBlock && skipBlockIds[iv.ReferenceId] {
					continue
				}
				kept = append(kept, iv)
			}
			intervals = kept
		}
		if err := CheckInterval(start, end, intervals); err != nil {
			return err
		}
	}
	return nil
}

// CreateBlock writes one block per day of the range, under the same locks bookings take.
func CreateBlock(ctx context.Context, input *NewBlock) ([]*Block, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	from, err := utils.ParseDate(input.DateFrom)
	if err != nil {
		return nil, err
	}
	to := from
	if strings.TrimSpace(input.DateTo) != "" {
		if to, err = utils.ParseDate(input.DateTo); err != nil {
			return nil, err
		}
	}
	days, err := BlockDays(from, to)
	if err != nil {
		return nil, err
	}
	start, end, err := input.Span()
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "Blocked"
	}
	scope, err := blockScope(ctx, input.ProfessionalId)
	if err != nil {
		return nil, err
	}

	var created []*Block
	err = utils.RunSerialized(ctx, dayLockKeys(scope, days), func(tx *gorm.DB) error {
		created = make([]*Block, 0, len(days))
		for _, day := range days {
			if err := checkBlockFits(tx, scope, day, start, end, nil); err != nil {
				return err
			}
			block := Block{
				ProfessionalId: input.ProfessionalId,
				Date:           day,
				StartTime:      start,
				EndTime:        end,
				Reason:         reason,
			}
			if err := tx.Create(&block).Error; err != nil {
				return err
			}
			created = append(created, &block)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	RecordAudit(ctx, AuditCategoryBlock, fmt.Sprintf("block %s-%s (%s) for professional %d from %s to %s",
		start, end, reason, input.ProfessionalId, utils.FormatDate(days[0]), utils.FormatDate(days[len(days)-1])))
	return created, nil
}

// OpeningHourBlocks returns the global blocks that close a day outside [open, close).
// The evening block runs to midnight; closing at DayEnd leaves the evening open.
func OpeningHourBlocks(day time.Time, open, close TimeOfDay) ([]*Block, error) {
	if close <= open {
		return nil, utils.ValidationErrorf("closing time %s must be after opening time %s", close, open)
	}
	blocks := make([]*Block, 0, 2)
	if open > Midnight {
		blocks = append(blocks, &Block{ProfessionalId: AllProfessionals, Date: day, StartTime: Midnight, EndTime: open, Reason: BlockReasonOutOfHours})
	}
	if close < DayEnd {
		blocks = append(blocks, &Block{ProfessionalId: AllProfessionals, Date: day, StartTime: close, EndTime: EndOfDay, Reason: BlockReasonOutOfHours})
	}
	return blocks, nil
}

// SetOpeningHours replaces the day's "Out of hours" blocks.
func SetOpeningHours(ctx context.Context, date time.Time, open, close TimeOfDay) ([]*Block, error) {
	day := utils.TruncateToDay(date)
	blocks, err := OpeningHourBlocks(day, open, close)
	if err != nil {
		return nil, err
	}
	scope, err := blockScope(ctx, AllProfessionals)
	if err != nil {
		return nil, err
	}
	err = utils.RunSerialized(ctx, dayLockKeys(scope, []time.Time{day}), func(tx *gorm.DB) error {
		var previous []*Block
		if err := tx.Where("professional_id = ? AND date = ? AND reason = ?", AllProfessionals, utils.FormatDate(day), BlockReasonOutOfHours).
			Find(&previous).Error; err != nil {
			return err
		}
		skip := make(map[int]bool, len(previous))
		for _, b := range previous {
			skip[b.ID] = true
		}
		for _, b := range blocks {
			if err := checkBlockFits(tx, scope, day, b.StartTime, b.EndTime, skip); err != nil {
				return err
			}
		}
		if len(previous) > 0 {
			if err := tx.Delete(&Block{}, "id IN ?", blockIds(previous)).Error; err != nil {
				return err
			}
		}
		for _, b := range blocks {
			if err := tx.Create(b).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	RecordAudit(ctx, AuditCategoryBlock, fmt.Sprintf("opening hours of %s set to %s-%s", utils.FormatDate(day), open, close))
	return blocks, nil
}

func blockIds(blocks []*Block) []int {
	ids := make([]int, 0, len(blocks))
	for _, b := range blocks {
		ids = append(ids, b.ID)
	}
	return ids
}

func DeleteBlock(ctx context.Context, id int) (*Block, error) {
	block, err := utils.FetchModel[Block](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(block).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	RecordAudit(ctx, AuditCategoryBlock, fmt.Sprintf("block #%d (%s) on %s removed", id, block.Reason, utils.FormatDate(block.Date)))
	return block, nil
}

// ListBlocks returns the most recent blocks first.
func ListBlocks(ctx context.Context, limit int) ([]*Block, error) {
	if limit <= 0 {
		limit = 50
	}
	db := config.GetDB()
	var results []*Block
	if err := db.WithContext(ctx).Order("date DESC").Order("start_time ASC").Limit(limit).Find(&results).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return results, nil
}

func blocksOnDate(db *gorm.DB, date time.Time) ([]*Block, error) {
	var blocks []*Block
	if err := db.Where("date = ?", utils.FormatDate(date)).Order("start_time ASC").Find(&blocks).Error; err != nil {
		return nil, utils.ClassifyStorageError(err)
	}
	return blocks, nil
}

// OccupiedIntervals is the read-only view of one professional's day.
func OccupiedIntervals(ctx context.Context, professionalId int, date time.Time) ([]Interval, error) {
	db := config.GetDB()
	return LoadDayIntervals(db.WithContext(ctx), professionalId, date, 0)
}

type ProfessionalSchedule struct {
	Professional *Professional `json:"professional"`
	Intervals    []Interval    `json:"intervals"`
}

// DaySchedule returns every active professional's occupied intervals for the day.
func DaySchedule(ctx context.Context, date time.Time) ([]*ProfessionalSchedule, error) {
	professionals, err := ListProfessionals(ctx, false)
	if err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)
	schedule := make([]*ProfessionalSchedule, 0, len(professionals))
	for _, p := range professionals {
		intervals, err := LoadDayIntervals(db, p.ID, date, 0)
		if err != nil {
			return nil, err
		}
		schedule = append(schedule, &ProfessionalSchedule{Professional: p, Intervals: intervals})
	}
	return schedule, nil
}
