// Package importer normalizes heterogeneous store records into canonical
// store documents and persists a whole import as one atomic batch.
package importer

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gosom/store-provisioner/docstore"
	"github.com/gosom/store-provisioner/models"
)

const (
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idLength   = 13
)

// Normalizer turns raw import records into canonical store documents. The
// used-id set is scoped to one normalizer, i.e. one import run; it is not
// shared across concurrent imports.
type Normalizer struct {
	used  map[string]struct{}
	newID func() string
}

func NewNormalizer() *Normalizer {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // ids are not secrets

	return &Normalizer{
		used: make(map[string]struct{}),
		newID: func() string {
			var sb strings.Builder
			for i := 0; i < idLength; i++ {
				sb.WriteByte(idAlphabet[rnd.Intn(len(idAlphabet))])
			}

			return sb.String()
		},
	}
}

// AllocateID returns a fresh base-36 id, retrying until it does not collide
// with any id handed out by this normalizer.
func (n *Normalizer) AllocateID() string {
	var id string

	for {
		id = n.newID()
		if _, taken := n.used[id]; !taken {
			break
		}
	}

	n.used[id] = struct{}{}

	return id
}

// Normalize converts one raw record into its canonical document.
func (n *Normalizer) Normalize(raw models.RawStore) models.Store {
	now := time.Now().UTC()

	store := models.Store{
		ID:             n.AllocateID(),
		Name:           raw.Name,
		NameLower:      strings.ToLower(raw.Name),
		Category:       filterCategories(raw.Category),
		CuisineTypes:   orEmpty(raw.CuisineTypes),
		ContactNumber:  raw.ContactNumber,
		Ratings:        ratingSummary(raw.Ratings, raw.TotalRatings),
		Menus:          normalizeMenus(raw.Menus),
		BusinessHours:  normalizeBusinessHours(raw.BusinessHours),
		HappyHours:     normalizeHappyHours(raw.HappyHours),
		Is24Hours:      raw.Is24Hours,
		OwnerID:        "",
		Managers:       []string{},
		MenuCategories: []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if raw.Location != nil {
		store.Location = *raw.Location
	}

	return store
}

// NormalizeAll converts every record, allocating a distinct id per record.
func (n *Normalizer) NormalizeAll(raws []models.RawStore) []models.Store {
	ans := make([]models.Store, 0, len(raws))

	for _, raw := range raws {
		ans = append(ans, n.Normalize(raw))
	}

	return ans
}

// filterCategories keeps only members of the fixed category enumeration. A
// missing or non-array category yields an empty set.
func filterCategories(raw json.RawMessage) []string {
	ans := []string{}

	if len(raw) == 0 {
		return ans
	}

	var cats []string
	if err := json.Unmarshal(raw, &cats); err != nil {
		return ans
	}

	for _, cat := range cats {
		for _, valid := range models.ValidCategories {
			if cat == valid {
				ans = append(ans, cat)

				break
			}
		}
	}

	return ans
}

// ratingSummary computes the aggregate. The average is the arithmetic mean of
// the scores (0 when there are none); the total is caller-supplied and is not
// re-derived from the scores.
func ratingSummary(scores []float64, total int) models.RatingSummary {
	ans := models.RatingSummary{
		Total:  total,
		Scores: orEmptyFloat(scores),
	}

	if len(scores) > 0 {
		var sum float64
		for _, score := range scores {
			sum += score
		}

		ans.Average = sum / float64(len(scores))
	}

	return ans
}

func normalizeMenus(raws []models.RawMenuItem) []models.MenuItem {
	ans := make([]models.MenuItem, 0, len(raws))

	for _, raw := range raws {
		ans = append(ans, models.MenuItem{
			ID:    raw.ItemID,
			Name:  raw.Name,
			Price: raw.Price,
			Type:  raw.Type,
		})
	}

	return ans
}

func normalizeBusinessHours(raws []models.RawHours) []models.BusinessHours {
	ans := make([]models.BusinessHours, 0, len(raws))

	for _, raw := range raws {
		ans = append(ans, models.BusinessHours{
			OpenHour:    raw.OpenHour,
			OpenMinute:  raw.OpenMinute,
			CloseHour:   raw.CloseHour,
			CloseMinute: raw.CloseMinute,
			IsNextDay:   raw.IsNextDay,
			DaysOfWeek:  orEmpty(raw.DaysOfWeek),
		})
	}

	return ans
}

func normalizeHappyHours(raws []models.RawHours) []models.HappyHours {
	ans := make([]models.HappyHours, 0, len(raws))

	for _, raw := range raws {
		ans = append(ans, models.HappyHours{
			StartHour:   raw.StartHour,
			StartMinute: raw.StartMinute,
			EndHour:     raw.EndHour,
			EndMinute:   raw.EndMinute,
			IsNextDay:   raw.IsNextDay,
			DaysOfWeek:  orEmpty(raw.DaysOfWeek),
		})
	}

	return ans
}

func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}

	return in
}

func orEmptyFloat(in []float64) []float64 {
	if in == nil {
		return []float64{}
	}

	return in
}

// Importer runs a whole import: normalize everything first, then commit all
// documents in one batch.
type Importer struct {
	repo   docstore.Store
	logger *zap.Logger
}

func New(repo docstore.Store, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Importer{repo: repo, logger: logger}
}

// Run imports raws and returns the number of stores written. Either the whole
// import commits or none of it does.
func (im *Importer) Run(ctx context.Context, raws []models.RawStore) (int, error) {
	normalizer := NewNormalizer()
	stores := normalizer.NormalizeAll(raws)

	batch := im.repo.NewBatch()
	for i := range stores {
		batch.SetStore(stores[i])
	}

	if err := batch.Commit(ctx); err != nil {
		return 0, err
	}

	im.logger.Info("store import committed", zap.Int("count", len(stores)))

	return len(stores), nil
}
