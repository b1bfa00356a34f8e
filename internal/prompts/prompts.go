package prompts

import (
	"fmt"
	"strings"
)

// ArticleSystemPrompt sets the writer's role for article generation.
const ArticleSystemPrompt = `You are a senior software engineer who writes practical technical blog posts.

Rules:
- Write in Markdown. Start with a single H1 title line.
- 800-1500 words, with an introduction, 3-5 sections with H2 headings, and a short conclusion.
- Prefer concrete examples and short code snippets over generic advice.
- Do not invent benchmarks, quotes or links.
- Output only the article, no preface or closing remarks.`

// articleUserTemplate is filled with title, description and tag list.
const articleUserTemplate = `Write a blog post for the following idea.

Title: %s

Idea:
%s

Tags: %s`

// ArticleUserPrompt builds the user prompt for one idea.
func ArticleUserPrompt(title, description string, tags []string) string {
	return fmt.Sprintf(articleUserTemplate, title, description, strings.Join(tags, ", "))
}
