package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"priceradar-backend/internal/model"
)

// PostgresAdapter serves one retailer from its own products table
// (products_saturn, products_mediamarkt, ...). Tables are schema-identical;
// the scrapers for each retailer write independently into their own table.
type PostgresAdapter struct {
	db    *sql.DB
	tag   model.SourceTag
	table string
}

// NewPostgresAdapter returns an adapter over the per-retailer table for tag.
func NewPostgresAdapter(db *sql.DB, tag model.SourceTag) *PostgresAdapter {
	return &PostgresAdapter{
		db:    db,
		tag:   tag,
		table: pq.QuoteIdentifier("products_" + string(tag)),
	}
}

// EnsureSchema creates the retailer table and its lookup indexes if missing.
// Safe to run on every startup.
func (a *PostgresAdapter) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		brand       TEXT,
		category    TEXT NOT NULL,
		description TEXT,
		gtin        TEXT,
		sku         TEXT,
		price       NUMERIC(10,2) NOT NULL,
		old_price   NUMERIC(10,2),
		discount    TEXT,
		currency    TEXT NOT NULL DEFAULT 'EUR',
		image_url   TEXT,
		source_url  TEXT,
		scraped_at  TIMESTAMPTZ
	)`, a.table)
	if _, err := a.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", a.table, err)
	}
	for _, col := range []string{"gtin", "category", "scraped_at"} {
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			pq.QuoteIdentifier(fmt.Sprintf("products_%s_%s_idx", a.tag, col)), a.table, col)
		if _, err := a.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index on %s.%s: %w", a.table, col, err)
		}
	}
	return nil
}

func (a *PostgresAdapter) Tag() model.SourceTag { return a.tag }

// whereClause renders the filter as SQL. Term is matched as a case-insensitive
// substring over the free-text columns; category and brand match exactly.
func (f Filter) whereClause() (string, []any) {
	var conds []string
	var args []any
	for _, token := range strings.Fields(f.Term) {
		args = append(args, "%"+token+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(title ILIKE $%d OR sku ILIKE $%d OR gtin ILIKE $%d OR description ILIKE $%d OR brand ILIKE $%d)",
			n, n, n, n, n))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Brand != "" {
		args = append(args, f.Brand)
		conds = append(conds, fmt.Sprintf("brand = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (a *PostgresAdapter) Count(ctx context.Context, f Filter) (int, error) {
	where, args := f.whereClause()
	var n int
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+a.table+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", a.tag, err)
	}
	return n, nil
}

const productColumns = "id, title, brand, category, description, gtin, sku, price, old_price, discount, currency, image_url, source_url, scraped_at"

func (a *PostgresAdapter) Scan(ctx context.Context, f Filter, limit int) ([]model.ProductRecord, error) {
	where, args := f.whereClause()
	args = append(args, limit)
	q := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY scraped_at DESC NULLS LAST LIMIT $%d",
		productColumns, a.table, where, len(args))
	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", a.tag, err)
	}
	defer rows.Close()

	var out []model.ProductRecord
	for rows.Next() {
		rec, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", a.tag, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (a *PostgresAdapter) DistinctCategories(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT DISTINCT category FROM "+a.table+" ORDER BY category")
	if err != nil {
		return nil, fmt.Errorf("distinct categories %s: %w", a.tag, err)
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (a *PostgresAdapter) AggregateByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT category, COUNT(*) FROM "+a.table+" GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("aggregate categories %s: %w", a.tag, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var c string
		var n int
		if err := rows.Scan(&c, &n); err != nil {
			return nil, err
		}
		counts[c] = n
	}
	return counts, rows.Err()
}

func (a *PostgresAdapter) GetByID(ctx context.Context, id string) (model.ProductRecord, error) {
	return a.getOne(ctx, "id", id)
}

func (a *PostgresAdapter) GetByGTIN(ctx context.Context, gtin string) (model.ProductRecord, error) {
	return a.getOne(ctx, "gtin", gtin)
}

func (a *PostgresAdapter) getOne(ctx context.Context, col, val string) (model.ProductRecord, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 LIMIT 1", productColumns, a.table, col)
	rec, err := scanProduct(a.db.QueryRowContext(ctx, q, val))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ProductRecord{}, ErrNotFound
	}
	if err != nil {
		return model.ProductRecord{}, fmt.Errorf("get %s by %s: %w", a.tag, col, err)
	}
	return rec, nil
}

// Upsert writes the latest scraped snapshot, replacing any previous row for
// the same id. Only ingest calls this.
func (a *PostgresAdapter) Upsert(ctx context.Context, rec model.ProductRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s (%s)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, brand = EXCLUDED.brand,
			category = EXCLUDED.category, description = EXCLUDED.description,
			gtin = EXCLUDED.gtin, sku = EXCLUDED.sku,
			price = EXCLUDED.price, old_price = EXCLUDED.old_price,
			discount = EXCLUDED.discount, currency = EXCLUDED.currency,
			image_url = EXCLUDED.image_url, source_url = EXCLUDED.source_url,
			scraped_at = EXCLUDED.scraped_at`, a.table, productColumns)
	_, err := a.db.ExecContext(ctx, q,
		rec.ID, rec.Title, nullString(rec.Brand), rec.Category, nullString(rec.Description),
		nullString(rec.GTIN), nullString(rec.SKU), rec.Price, nullFloat(rec.OldPrice),
		nullString(rec.Discount), rec.Currency, nullString(rec.ImageURL),
		nullString(rec.SourceURL), nullTime(rec.ScrapedAt))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", a.tag, rec.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (model.ProductRecord, error) {
	var rec model.ProductRecord
	var brand, desc, gtin, sku, discount, imageURL, sourceURL sql.NullString
	var oldPrice sql.NullFloat64
	var scrapedAt sql.NullTime
	err := row.Scan(&rec.ID, &rec.Title, &brand, &rec.Category, &desc, &gtin, &sku,
		&rec.Price, &oldPrice, &discount, &rec.Currency, &imageURL, &sourceURL, &scrapedAt)
	if err != nil {
		return model.ProductRecord{}, err
	}
	rec.Brand = brand.String
	rec.Description = desc.String
	rec.GTIN = gtin.String
	rec.SKU = sku.String
	rec.OldPrice = oldPrice.Float64
	rec.Discount = discount.String
	rec.ImageURL = imageURL.String
	rec.SourceURL = sourceURL.String
	if scrapedAt.Valid {
		t := scrapedAt.Time
		rec.ScrapedAt = &t
	}
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: f != 0}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
