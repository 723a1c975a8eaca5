package repository

import (
	"context"
	"fmt"

	"plantcare/internal/fertilizer"
	"plantcare/internal/models"
	"plantcare/pkg/database"
	"plantcare/pkg/logging"
)

// ReferenceRepository reads and seeds agronomic reference data held in SQL tables.
type ReferenceRepository interface {
	Load(ctx context.Context) (*fertilizer.ReferenceData, error)
	Seed(ctx context.Context, ref *fertilizer.ReferenceData) error
}

type referenceRepository struct {
	db     *database.DB
	logger *logging.StructuredLogger
}

// NewReferenceRepository creates a reference repository over db.
func NewReferenceRepository(db *database.DB, logger *logging.StructuredLogger) ReferenceRepository {
	return &referenceRepository{db: db, logger: logger}
}

type bandRow struct {
	Crop  string  `db:"crop"`
	NLow  float64 `db:"n_low"`
	NHigh float64 `db:"n_high"`
	PLow  float64 `db:"p_low"`
	PHigh float64 `db:"p_high"`
	KLow  float64 `db:"k_low"`
	KHigh float64 `db:"k_high"`
}

type productRow struct {
	Role          string `db:"role"`
	Name          string `db:"name"`
	Short         string `db:"short_name"`
	NPK           string `db:"npk"`
	PriceINRPerMT int    `db:"price_inr_per_mt"`
	Scheme        string `db:"scheme"`
	Rate          string `db:"rate"`
}

type scheduleRow struct {
	Kind string `db:"kind"`
	Body string `db:"body"`
}

// Load assembles and validates reference data from the tables
func (r *referenceRepository) Load(ctx context.Context) (*fertilizer.ReferenceData, error) {
	ref := &fertilizer.ReferenceData{Bands: fertilizer.ThresholdTable{}}

	var bands []bandRow
	if err := r.db.SelectContext(ctx, "load_bands", &bands,
		`SELECT crop, n_low, n_high, p_low, p_high, k_low, k_high FROM crop_bands`); err != nil {
		return nil, fmt.Errorf("failed to load crop bands: %w", err)
	}
	for _, b := range bands {
		ref.Bands[fertilizer.NormalizeCrop(b.Crop)] = models.CropBands{
			N: models.NutrientBand{Low: b.NLow, High: b.NHigh},
			P: models.NutrientBand{Low: b.PLow, High: b.PHigh},
			K: models.NutrientBand{Low: b.KLow, High: b.KHigh},
		}
	}

	var products []productRow
	if err := r.db.SelectContext(ctx, "load_products", &products,
		`SELECT role, name, short_name, npk, price_inr_per_mt, scheme, rate FROM fertilizer_products`); err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	for _, p := range products {
		slot := ref.Products.Slot(fertilizer.ProductRole(p.Role))
		if slot == nil {
			return nil, fmt.Errorf("unknown product role %q", p.Role)
		}
		npk, err := fertilizer.ParseNPK(p.NPK)
		if err != nil {
			return nil, err
		}
		*slot = fertilizer.Product{
			Name:          p.Name,
			Short:         p.Short,
			NPK:           npk,
			PriceINRPerMT: p.PriceINRPerMT,
			Scheme:        p.Scheme,
			Rate:          p.Rate,
		}
	}

	var schedules []scheduleRow
	if err := r.db.SelectContext(ctx, "load_schedules", &schedules,
		`SELECT kind, body FROM schedule_templates`); err != nil {
		return nil, fmt.Errorf("failed to load schedules: %w", err)
	}
	for _, s := range schedules {
		kind, err := fertilizer.ParseScheduleKind(s.Kind)
		if err != nil {
			return nil, err
		}
		ref.Schedules.Set(kind, s.Body)
	}

	ref.Catalogue = []models.CatalogueItem{}
	if err := r.db.SelectContext(ctx, "load_catalogue", &ref.Catalogue,
		`SELECT name, npk, price_inr_per_mt, scheme, best_for FROM fertilizer_catalogue ORDER BY position`); err != nil {
		return nil, fmt.Errorf("failed to load catalogue: %w", err)
	}

	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("reference data in database is invalid: %w", err)
	}

	r.logger.Info(ctx, "[REPO_LOAD_REFERENCE] Reference data loaded", logging.Fields{
		"crops":     len(ref.Bands),
		"catalogue": len(ref.Catalogue),
	})
	return ref, nil
}

// Seed replaces the table contents with ref in a single transaction
func (r *referenceRepository) Seed(ctx context.Context, ref *fertilizer.ReferenceData) error {
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("refusing to seed invalid reference data: %w", err)
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"crop_bands", "fertilizer_products", "schedule_templates", "fertilizer_catalogue"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for crop, b := range ref.Bands {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO crop_bands (crop, n_low, n_high, p_low, p_high, k_low, k_high)
			VALUES (:crop, :n_low, :n_high, :p_low, :p_high, :k_low, :k_high)
		`, bandRow{
			Crop: crop,
			NLow: b.N.Low, NHigh: b.N.High,
			PLow: b.P.Low, PHigh: b.P.High,
			KLow: b.K.Low, KHigh: b.K.High,
		}); err != nil {
			return fmt.Errorf("failed to insert bands for %s: %w", crop, err)
		}
	}

	for _, role := range fertilizer.ProductRoles {
		p := ref.Products.Slot(role)
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO fertilizer_products (role, name, short_name, npk, price_inr_per_mt, scheme, rate)
			VALUES (:role, :name, :short_name, :npk, :price_inr_per_mt, :scheme, :rate)
		`, productRow{
			Role:          string(role),
			Name:          p.Name,
			Short:         p.Short,
			NPK:           p.NPK.String(),
			PriceINRPerMT: p.PriceINRPerMT,
			Scheme:        p.Scheme,
			Rate:          p.Rate,
		}); err != nil {
			return fmt.Errorf("failed to insert product %s: %w", role, err)
		}
	}

	for _, kind := range fertilizer.ScheduleKinds {
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO schedule_templates (kind, body) VALUES (:kind, :body)`,
			scheduleRow{Kind: kind.String(), Body: ref.Schedules.For(kind)},
		); err != nil {
			return fmt.Errorf("failed to insert schedule %s: %w", kind, err)
		}
	}

	for i, item := range ref.Catalogue {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO fertilizer_catalogue (position, name, npk, price_inr_per_mt, scheme, best_for)
			VALUES (?, ?, ?, ?, ?, ?)
		`), i, item.Name, item.NPK, item.PriceINRPerMT, item.Scheme, item.BestFor); err != nil {
			return fmt.Errorf("failed to insert catalogue item %s: %w", item.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reference data: %w", err)
	}

	r.logger.Info(ctx, "[REPO_SEED_REFERENCE] Reference data seeded", logging.Fields{
		"crops":     len(ref.Bands),
		"catalogue": len(ref.Catalogue),
	})
	return nil
}
