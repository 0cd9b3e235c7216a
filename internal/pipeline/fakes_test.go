package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/franckalain/barcodenutrition/internal/barcode"
	"github.com/franckalain/barcodenutrition/internal/models"
	"github.com/franckalain/barcodenutrition/internal/nutrition"
)

// fakeFetcher returns the reference itself as the image bytes, unless an
// error is registered for it.
type fakeFetcher struct {
	mu      sync.Mutex
	errs    map[string]error
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, ref)
	f.mu.Unlock()
	if err, ok := f.errs[ref]; ok {
		return nil, err
	}
	return []byte(ref), nil
}

// fakeDecoder maps image bytes to codes. Images starting with "blank" hold
// no barcode.
type fakeDecoder struct {
	codes map[string]string
}

func (d *fakeDecoder) Load(context.Context) error { return nil }
func (d *fakeDecoder) Close() error               { return nil }

func (d *fakeDecoder) Decode(_ context.Context, data []byte) (string, error) {
	code, ok := d.codes[string(data)]
	if !ok {
		return "", barcode.ErrNoBarcode
	}
	return code, nil
}

// fakeLookup answers from fixed maps and records the codes it was asked for.
type fakeLookup struct {
	items map[string]*models.NutritionItem
	errs  map[string]error
	asked []string
}

func (l *fakeLookup) Lookup(_ context.Context, code string) (*models.NutritionItem, error) {
	l.asked = append(l.asked, code)
	if err, ok := l.errs[code]; ok {
		return nil, err
	}
	if item, ok := l.items[code]; ok {
		return item, nil
	}
	return nil, nutrition.ErrNotFound
}

func (l *fakeLookup) Close() error { return nil }

var errConnReset = errors.New("connection reset by peer")

func item(brand, name string, cal, prot, carb, fat float64) *models.NutritionItem {
	return &models.NutritionItem{
		BrandName:         brand,
		ProductName:       name,
		Calories:          models.Float(cal),
		Protein:           models.Float(prot),
		TotalCarbohydrate: models.Float(carb),
		TotalFat:          models.Float(fat),
	}
}
