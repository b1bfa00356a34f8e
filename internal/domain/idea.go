package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// Limits applied when an idea is created.
const (
	TitleMinLen       = 5
	TitleMaxLen       = 200
	DescriptionMinLen = 20
	DescriptionMaxLen = 1000
	TagsMin           = 1
	TagsMax           = 5
	TagMaxLen         = 50
)

// Idea is a blog-post idea in the pool.
type Idea struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Tags        []string   `json:"tags" yaml:"tags"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	Used        bool       `json:"used" yaml:"used"`
	UsedAt      *time.Time `json:"used_at,omitempty" yaml:"used_at,omitempty"`
}

// EmbeddingText is the text an idea's embedding is computed from.
func (i *Idea) EmbeddingText() string {
	return EmbeddingText(i.Title, i.Description)
}

// EmbeddingText joins title and description with a blank line.
func EmbeddingText(title, description string) string {
	return title + "\n\n" + description
}

// MarkUsed sets Used and UsedAt. It fails if the idea is already used, so
// UsedAt is written exactly once.
func (i *Idea) MarkUsed(at time.Time) error {
	if i.Used {
		return goerr.Wrap(ErrIdeaAlreadyUsed, "idea is already used",
			goerr.V("id", i.ID), goerr.V("used_at", i.UsedAt))
	}
	at = at.UTC()
	i.Used = true
	i.UsedAt = &at
	return nil
}

// NewIdeaInput is the operator-supplied part of an idea.
type NewIdeaInput struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Tags        []string `json:"tags" yaml:"tags"`
}

// Normalize trims surrounding whitespace from every field and drops empty tags.
func (in NewIdeaInput) Normalize() NewIdeaInput {
	out := NewIdeaInput{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Tags:        make([]string, 0, len(in.Tags)),
	}
	for _, tag := range in.Tags {
		if t := strings.TrimSpace(tag); t != "" {
			out.Tags = append(out.Tags, t)
		}
	}
	return out
}

// Validate checks the creation-time limits. Lengths are counted in runes.
func (in NewIdeaInput) Validate() error {
	if n := utf8.RuneCountInString(in.Title); n < TitleMinLen || n > TitleMaxLen {
		return goerr.Wrap(ErrInvalidIdea, "title must be 5-200 characters", goerr.V("length", n))
	}
	if n := utf8.RuneCountInString(in.Description); n < DescriptionMinLen || n > DescriptionMaxLen {
		return goerr.Wrap(ErrInvalidIdea, "description must be 20-1000 characters", goerr.V("length", n))
	}
	if n := len(in.Tags); n < TagsMin || n > TagsMax {
		return goerr.Wrap(ErrInvalidIdea, "an idea needs 1-5 tags", goerr.V("count", n))
	}
	for _, tag := range in.Tags {
		if tag == "" || utf8.RuneCountInString(tag) > TagMaxLen {
			return goerr.Wrap(ErrInvalidIdea, "tags must be 1-50 characters", goerr.V("tag", tag))
		}
	}
	return nil
}

// NewIdea builds an unused idea with a fresh id.
func NewIdea(in NewIdeaInput, now time.Time) *Idea {
	tags := make([]string, len(in.Tags))
	copy(tags, in.Tags)
	return &Idea{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		Tags:        tags,
		CreatedAt:   now.UTC(),
	}
}

// ScoredIdea is an idea returned by a similarity query.
type ScoredIdea struct {
	Idea  Idea    `json:"idea"`
	Score float64 `json:"score"`
}

// Conflict describes an existing idea that blocked a new one.
type Conflict struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}
