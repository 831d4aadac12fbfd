package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/ignite/traffic-engine/internal/service/campaign"
	"github.com/lib/pq"
)

// Schema creates the campaign table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS traffic_campaigns (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'active',
	region          TEXT NOT NULL DEFAULT '',
	country_code    TEXT NOT NULL DEFAULT '',
	urls            TEXT[] NOT NULL DEFAULT '{}',
	traffic_pattern TEXT NOT NULL DEFAULT 'Linear',
	target_os       TEXT NOT NULL DEFAULT '',
	keyword         TEXT NOT NULL DEFAULT '',
	search_engine   TEXT NOT NULL DEFAULT '',
	depth           INTEGER NOT NULL DEFAULT 1,
	ga4_id          TEXT,
	ga4_api_secret  TEXT NOT NULL DEFAULT '',
	hits            BIGINT NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_traffic_campaigns_status ON traffic_campaigns (status, created_at);
`

const selectColumns = `
	SELECT id, name, status, region, country_code, urls, traffic_pattern,
	       target_os, keyword, search_engine, depth, ga4_id, ga4_api_secret,
	       hits, created_at, updated_at
	FROM traffic_campaigns`

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

var _ campaign.Repository = (*CampaignRepo)(nil)

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

// EnsureSchema applies Schema.
func (r *CampaignRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(s rowScanner) (*domain.Campaign, error) {
	var (
		c    domain.Campaign
		urls pq.StringArray
		ga4  sql.NullString
	)
	err := s.Scan(
		&c.ID, &c.Name, &c.Status, &c.Region, &c.CountryCode, &urls, &c.TrafficPattern,
		&c.TargetOS, &c.Keyword, &c.SearchEngine, &c.Depth, &ga4, &c.GA4APISecret,
		&c.Stats.Hits, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.URLs = []string(urls)
	if ga4.Valid {
		c.GA4ID = &ga4.String
	}
	return &c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, error) {
	q := selectColumns + ` WHERE 1=1`
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		q += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q += fmt.Sprintf(" AND name ILIKE $%d", idx)
		args = append(args, "%"+s+"%")
	}
	q += " ORDER BY created_at, id"
	return r.query(ctx, q, args...)
}

func (r *CampaignRepo) ListActive(ctx context.Context) ([]domain.Campaign, error) {
	return r.query(ctx, selectColumns+` WHERE status = $1 ORDER BY created_at, id`, domain.CampaignActive)
}

func (r *CampaignRepo) query(ctx context.Context, q string, args ...interface{}) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	out := []domain.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO traffic_campaigns
			(id, name, status, region, country_code, urls, traffic_pattern,
			 target_os, keyword, search_engine, depth, ga4_id, ga4_api_secret,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING created_at, updated_at
	`, c.ID, c.Name, c.Status, c.Region, c.CountryCode, pq.Array(c.URLs), c.TrafficPattern,
		c.TargetOS, c.Keyword, c.SearchEngine, c.Depth, c.GA4ID, c.GA4APISecret,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", campaign.ErrAlreadyExists
		}
		return "", fmt.Errorf("create campaign: %w", err)
	}
	return c.ID, nil
}

func (r *CampaignRepo) Update(ctx context.Context, c *domain.Campaign) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE traffic_campaigns SET
			name = $1, status = $2, region = $3, country_code = $4, urls = $5,
			traffic_pattern = $6, target_os = $7, keyword = $8, search_engine = $9,
			depth = $10, ga4_id = $11, ga4_api_secret = $12, updated_at = NOW()
		WHERE id = $13
	`, c.Name, c.Status, c.Region, c.CountryCode, pq.Array(c.URLs),
		c.TrafficPattern, c.TargetOS, c.Keyword, c.SearchEngine,
		c.Depth, c.GA4ID, c.GA4APISecret, c.ID)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	return expectOne(res)
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM traffic_campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return expectOne(res)
}

func (r *CampaignRepo) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE traffic_campaigns SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return expectOne(res)
}

// IncrementHits bumps the counter in a single statement so concurrent
// writers never lose an update.
func (r *CampaignRepo) IncrementHits(ctx context.Context, id string) (int64, error) {
	var hits int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE traffic_campaigns SET hits = hits + 1
		WHERE id = $1
		RETURNING hits
	`, id).Scan(&hits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, campaign.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment hits: %w", err)
	}
	return hits, nil
}

func expectOne(res sql.Result) error {
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}
