package importer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	dsmemory "github.com/gosom/store-provisioner/docstore/memory"
	"github.com/gosom/store-provisioner/models"
)

func Test_AllocateID_Shape(t *testing.T) {
	n := NewNormalizer()

	id := n.AllocateID()
	require.Len(t, id, idLength)

	for _, c := range id {
		require.Contains(t, idAlphabet, string(c))
	}
}

func Test_AllocateID_Distinct(t *testing.T) {
	n := NewNormalizer()

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := n.AllocateID()

		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func Test_AllocateID_RetriesOnCollision(t *testing.T) {
	// an adversarial generator that repeats itself: the allocator must keep
	// drawing until it gets an unused value
	seq := []string{"aaaaaaaaaaaaa", "aaaaaaaaaaaaa", "bbbbbbbbbbbbb"}
	i := 0

	n := &Normalizer{
		used: make(map[string]struct{}),
		newID: func() string {
			id := seq[i%len(seq)]
			i++

			return id
		},
	}

	require.Equal(t, "aaaaaaaaaaaaa", n.AllocateID())
	require.Equal(t, "bbbbbbbbbbbbb", n.AllocateID())
}

func Test_FilterCategories(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"mixed", `["happy_hour","bogus","special_events"]`, []string{"happy_hour", "special_events"}},
		{"all valid", `["happy_hour","deals_and_discounts","special_events","all_you_can_eat"]`,
			[]string{"happy_hour", "deals_and_discounts", "special_events", "all_you_can_eat"}},
		{"missing", ``, []string{}},
		{"null", `null`, []string{}},
		{"not an array", `"happy_hour"`, []string{}},
		{"wrong element type", `[1,2]`, []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := filterCategories(json.RawMessage(tc.raw))
			require.Equal(t, tc.want, got)
		})
	}
}

func Test_RatingSummary(t *testing.T) {
	got := ratingSummary([]float64{4, 5, 3}, 3)
	require.InDelta(t, 4.0, got.Average, 1e-9)
	require.Equal(t, 3, got.Total)
	require.Equal(t, []float64{4, 5, 3}, got.Scores)

	// no scores: average is zero, not a division error
	got = ratingSummary(nil, 0)
	require.Zero(t, got.Average)
	require.Zero(t, got.Total)
	require.Equal(t, []float64{}, got.Scores)

	// total is caller-supplied, never re-derived
	got = ratingSummary([]float64{5}, 10)
	require.Equal(t, 10, got.Total)
}

func Test_Normalize(t *testing.T) {
	raw := models.RawStore{
		StoreID:       "src-123",
		Name:          "Cafe ABC",
		Category:      json.RawMessage(`"not-a-list"`),
		ContactNumber: "555-0101",
		Location:      &models.GeoPoint{Latitude: 1.3, Longitude: 103.8},
		Ratings:       []float64{4, 5},
		TotalRatings:  2,
		Menus: []models.RawMenuItem{
			{ItemID: "m1", Name: "Flat White", Price: 5.5, Type: "drink"},
		},
		BusinessHours: []models.RawHours{
			{OpenHour: 9, OpenMinute: 30, CloseHour: 22, CloseMinute: 0, DaysOfWeek: []string{"mon", "tue"}},
		},
		HappyHours: []models.RawHours{
			{StartHour: 17, EndHour: 19, IsNextDay: false},
		},
	}

	store := NewNormalizer().Normalize(raw)

	require.Len(t, store.ID, idLength)
	require.NotEqual(t, "src-123", store.ID, "source ids are never reused")
	require.Equal(t, "Cafe ABC", store.Name)
	require.Equal(t, "cafe abc", store.NameLower)
	require.Equal(t, []string{}, store.Category)
	require.Equal(t, []string{}, store.CuisineTypes)
	require.Equal(t, "555-0101", store.ContactNumber)
	require.Equal(t, models.GeoPoint{Latitude: 1.3, Longitude: 103.8}, store.Location)

	require.InDelta(t, 4.5, store.Ratings.Average, 1e-9)
	require.Equal(t, 2, store.Ratings.Total)

	require.Len(t, store.Menus, 1)
	require.Equal(t, "m1", store.Menus[0].ID)
	require.Equal(t, "Flat White", store.Menus[0].Name)

	require.Len(t, store.BusinessHours, 1)
	require.Equal(t, 9, store.BusinessHours[0].OpenHour)
	require.Equal(t, []string{"mon", "tue"}, store.BusinessHours[0].DaysOfWeek)

	require.Len(t, store.HappyHours, 1)
	require.Equal(t, 17, store.HappyHours[0].StartHour)
	require.Equal(t, []string{}, store.HappyHours[0].DaysOfWeek)

	require.Empty(t, store.OwnerID)
	require.Equal(t, []string{}, store.Managers)
	require.Equal(t, []string{}, store.MenuCategories)
	require.False(t, store.Is24Hours)
	require.False(t, store.CreatedAt.IsZero())
	require.Equal(t, store.CreatedAt, store.UpdatedAt)
}

func Test_Normalize_Minimal(t *testing.T) {
	store := NewNormalizer().Normalize(models.RawStore{Name: "Bar"})

	require.Equal(t, "bar", store.NameLower)
	require.Equal(t, []string{}, store.Category)
	require.Equal(t, []string{}, store.CuisineTypes)
	require.Equal(t, []float64{}, store.Ratings.Scores)
	require.Empty(t, store.Menus)
	require.Empty(t, store.BusinessHours)
	require.Empty(t, store.HappyHours)
	require.Equal(t, models.GeoPoint{}, store.Location)
}

func Test_NormalizeAll_DistinctIDs(t *testing.T) {
	raws := make([]models.RawStore, 50)
	for i := range raws {
		raws[i] = models.RawStore{Name: "Same Name"}
	}

	stores := NewNormalizer().NormalizeAll(raws)
	require.Len(t, stores, 50)

	seen := make(map[string]struct{})
	for _, store := range stores {
		_, dup := seen[store.ID]
		require.False(t, dup)
		seen[store.ID] = struct{}{}
	}
}

func Test_Normalize_FromDatasetFile(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "stores.json"))
	require.NoError(t, err)

	var dataset models.ImportFile
	require.NoError(t, json.Unmarshal(raw, &dataset))
	require.Len(t, dataset.Stores, 2)

	stores := NewNormalizer().NormalizeAll(dataset.Stores)

	cafe := stores[0]
	require.Equal(t, "Cafe ABC", cafe.Name)
	require.Equal(t, []string{"happy_hour", "special_events"}, cafe.Category)
	require.Equal(t, []string{"coffee", "brunch"}, cafe.CuisineTypes)
	require.Equal(t, 1.3521, cafe.Location.Latitude)
	require.InDelta(t, 4.5, cafe.Ratings.Average, 1e-9)
	require.Equal(t, "m1", cafe.Menus[0].ID)
	require.Equal(t, 22, cafe.BusinessHours[0].CloseHour)
	require.Equal(t, 30, cafe.BusinessHours[0].CloseMinute)
	require.Equal(t, 19, cafe.HappyHours[0].EndHour)
	require.Equal(t, []string{"fri"}, cafe.HappyHours[0].DaysOfWeek)

	bar := stores[1]
	require.Equal(t, "Bar XYZ", bar.Name)
	require.Equal(t, []string{}, bar.Category, "a bare string category is dropped")
	require.True(t, bar.Is24Hours)
	require.Zero(t, bar.Ratings.Average)
}

func Test_Importer_Run(t *testing.T) {
	repo := dsmemory.New()
	im := New(repo, nil)

	raws := []models.RawStore{
		{Name: "Cafe ABC", Category: json.RawMessage(`["happy_hour"]`), Ratings: []float64{4, 5}, TotalRatings: 2},
		{Name: "Bar XYZ"},
	}

	count, err := im.Run(context.Background(), raws)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	stores, err := repo.ListStores(context.Background())
	require.NoError(t, err)
	require.Len(t, stores, 2)

	byName := make(map[string]models.Store)
	for _, store := range stores {
		byName[store.Name] = store
	}

	cafe := byName["Cafe ABC"]
	require.Equal(t, []string{"happy_hour"}, cafe.Category)
	require.InDelta(t, 4.5, cafe.Ratings.Average, 1e-9)
	require.Empty(t, cafe.OwnerID)
}
