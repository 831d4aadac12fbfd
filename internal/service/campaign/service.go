package campaign

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/ignite/traffic-engine/internal/domain"
)

var ga4IDPattern = regexp.MustCompile(`^G-[A-Z0-9]{4,16}$`)

// Service implements campaign business logic on top of a Repository.
// All public methods are safe for concurrent use if the underlying
// repository is concurrency-safe.
type Service struct {
	repo Repository
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	ID             string   `json:"id,omitempty"`
	Name           string   `json:"name"`
	Status         string   `json:"status,omitempty"`
	Region         string   `json:"region"`
	CountryCode    string   `json:"country_code"`
	URLs           []string `json:"urls"`
	TrafficPattern string   `json:"traffic_pattern"`
	TargetOS       string   `json:"target_os"`
	Keyword        string   `json:"keyword"`
	SearchEngine   string   `json:"search_engine"`
	Depth          int      `json:"depth"`
	GA4ID          string   `json:"ga4_id,omitempty"`
	GA4APISecret   string   `json:"ga4_api_secret,omitempty"`
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, error) {
	return s.repo.List(ctx, f)
}

// Create validates and persists a new campaign. Campaigns start active
// unless the input says otherwise.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	c, err := buildCampaign(input)
	if err != nil {
		return nil, err
	}
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	log.Printf("[campaign.Service] Created campaign %s (%s, %d urls, pattern=%s)", c.ID, c.Name, len(c.URLs), c.TrafficPattern)
	return c, nil
}

// Update applies non-nil fields to a campaign and re-validates it.
func (s *Service) Update(ctx context.Context, id string, u UpdateFields) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Region != nil {
		c.Region = *u.Region
	}
	if u.CountryCode != nil {
		c.CountryCode = *u.CountryCode
	}
	if u.URLs != nil {
		c.URLs = *u.URLs
	}
	if u.TrafficPattern != nil {
		c.TrafficPattern = domain.TrafficPattern(*u.TrafficPattern)
	}
	if u.TargetOS != nil {
		c.TargetOS = *u.TargetOS
	}
	if u.Keyword != nil {
		c.Keyword = *u.Keyword
	}
	if u.SearchEngine != nil {
		c.SearchEngine = *u.SearchEngine
	}
	if u.Depth != nil {
		c.Depth = *u.Depth
	}
	if u.GA4ID != nil {
		c.GA4ID = u.GA4ID
	}
	if u.GA4APISecret != nil {
		c.GA4APISecret = *u.GA4APISecret
	}
	if err := normalize(c); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update campaign: %w", err)
	}
	return c, nil
}

// Delete removes a campaign.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Pause marks a campaign paused. Pausing a paused campaign is a no-op.
func (s *Service) Pause(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, domain.CampaignPaused)
}

// Resume marks a campaign active. Resuming an active campaign is a no-op.
func (s *Service) Resume(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, domain.CampaignActive)
}

func (s *Service) setStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == status {
		return nil
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("transition to %s: %w", status, err)
	}
	log.Printf("[campaign.Service] Campaign %s: %s -> %s", id, c.Status, status)
	return nil
}

// ImportError describes one rejected import record.
type ImportError struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Imported []string      `json:"imported"`
	Errors   []ImportError `json:"errors"`
}

// Import creates each record independently. Invalid records are reported
// and skipped; valid ones are still created.
func (s *Service) Import(ctx context.Context, inputs []CreateInput) ImportResult {
	res := ImportResult{Imported: []string{}, Errors: []ImportError{}}
	for i, in := range inputs {
		c, err := s.Create(ctx, in)
		if err != nil {
			res.Errors = append(res.Errors, ImportError{Index: i, Name: in.Name, Message: err.Error()})
			continue
		}
		res.Imported = append(res.Imported, c.ID)
	}
	log.Printf("[campaign.Service] Import: %d created, %d rejected", len(res.Imported), len(res.Errors))
	return res
}

// Export returns every campaign as import-ready input. API secrets are
// never exported.
func (s *Service) Export(ctx context.Context) ([]CreateInput, error) {
	all, err := s.repo.List(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]CreateInput, 0, len(all))
	for _, c := range all {
		in := CreateInput{
			ID:             c.ID,
			Name:           c.Name,
			Status:         string(c.Status),
			Region:         c.Region,
			CountryCode:    c.CountryCode,
			URLs:           c.URLs,
			TrafficPattern: string(c.TrafficPattern),
			TargetOS:       c.TargetOS,
			Keyword:        c.Keyword,
			SearchEngine:   c.SearchEngine,
			Depth:          c.Depth,
		}
		if c.GA4ID != nil {
			in.GA4ID = *c.GA4ID
		}
		out = append(out, in)
	}
	return out, nil
}

func buildCampaign(in CreateInput) (*domain.Campaign, error) {
	c := &domain.Campaign{
		ID:             in.ID,
		Name:           in.Name,
		Status:         domain.CampaignStatus(strings.ToLower(strings.TrimSpace(in.Status))),
		Region:         in.Region,
		CountryCode:    in.CountryCode,
		URLs:           in.URLs,
		TrafficPattern: domain.TrafficPattern(in.TrafficPattern),
		TargetOS:       in.TargetOS,
		Keyword:        in.Keyword,
		SearchEngine:   in.SearchEngine,
		Depth:          in.Depth,
		GA4APISecret:   in.GA4APISecret,
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = domain.CampaignActive
	}
	if c.Depth == 0 {
		c.Depth = 1
	}
	if in.GA4ID != "" {
		id := in.GA4ID
		c.GA4ID = &id
	}
	if err := normalize(c); err != nil {
		return nil, err
	}
	return c, nil
}

// normalize validates c in place and applies documented fallbacks.
func normalize(c *domain.Campaign) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if !c.Status.Valid() {
		return fmt.Errorf("%w: %w %q", ErrInvalid, ErrInvalidStatus, c.Status)
	}

	urls := make([]string, 0, len(c.URLs))
	for _, raw := range c.URLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: url %q must be an absolute http(s) URL", ErrInvalid, raw)
		}
		urls = append(urls, raw)
	}
	if len(urls) == 0 {
		return fmt.Errorf("%w: at least one url is required", ErrInvalid)
	}
	c.URLs = urls

	switch strings.ToLower(strings.TrimSpace(string(c.TrafficPattern))) {
	case "", "linear", "pulse", "viral":
		c.TrafficPattern = domain.ParseTrafficPattern(string(c.TrafficPattern))
	default:
		return fmt.Errorf("%w: unknown traffic pattern %q", ErrInvalid, c.TrafficPattern)
	}

	if c.Depth < 1 {
		return fmt.Errorf("%w: depth must be at least 1", ErrInvalid)
	}
	c.CountryCode = strings.ToUpper(strings.TrimSpace(c.CountryCode))

	if c.GA4ID != nil {
		id := strings.ToUpper(strings.TrimSpace(*c.GA4ID))
		if id == "" {
			c.GA4ID = nil
		} else if !ga4IDPattern.MatchString(id) {
			return fmt.Errorf("%w: ga4 id %q must look like G-XXXXXXX", ErrInvalid, *c.GA4ID)
		} else {
			c.GA4ID = &id
		}
	}
	return nil
}
