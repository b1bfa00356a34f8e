package repository

import (
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/domain"
)

// Metadata keys. The vector store keeps flat string maps only, so every
// structured field is string-encoded here and nowhere else.
const (
	metaTitle       = "title"
	metaDescription = "description"
	metaTags        = "tags"
	metaCreatedAt   = "createdAt"
	metaUsed        = "used"
	metaUsedAt      = "usedAt"
)

const (
	usedTrue  = "true"
	usedFalse = "false"
)

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// encodeIdea flattens an idea into store metadata.
func encodeIdea(idea *domain.Idea) (map[string]string, error) {
	tags := idea.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode tags", goerr.V("id", idea.ID))
	}

	md := map[string]string{
		metaTitle:       idea.Title,
		metaDescription: idea.Description,
		metaTags:        string(tagsJSON),
		metaCreatedAt:   encodeTime(idea.CreatedAt),
		metaUsed:        usedFalse,
		metaUsedAt:      "",
	}
	if idea.Used {
		md[metaUsed] = usedTrue
		if idea.UsedAt != nil {
			md[metaUsedAt] = encodeTime(*idea.UsedAt)
		}
	}
	return md, nil
}

// decodeIdea rebuilds an idea from store metadata. An empty usedAt means
// the idea has no usage timestamp.
func decodeIdea(id string, md map[string]string) (*domain.Idea, error) {
	idea := &domain.Idea{
		ID:          id,
		Title:       md[metaTitle],
		Description: md[metaDescription],
		Tags:        []string{},
	}

	if raw := md[metaTags]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &idea.Tags); err != nil {
			return nil, goerr.Wrap(err, "corrupt tags metadata", goerr.V("id", id), goerr.V("tags", raw))
		}
	}

	if raw := md[metaCreatedAt]; raw != "" {
		createdAt, err := decodeTime(raw)
		if err != nil {
			return nil, goerr.Wrap(err, "corrupt createdAt metadata", goerr.V("id", id))
		}
		idea.CreatedAt = createdAt
	}

	switch md[metaUsed] {
	case usedTrue:
		idea.Used = true
	case usedFalse, "":
	default:
		return nil, goerr.New("corrupt used metadata", goerr.V("id", id), goerr.V("used", md[metaUsed]))
	}

	if raw := md[metaUsedAt]; raw != "" {
		usedAt, err := decodeTime(raw)
		if err != nil {
			return nil, goerr.Wrap(err, "corrupt usedAt metadata", goerr.V("id", id))
		}
		idea.UsedAt = &usedAt
	}

	return idea, nil
}
