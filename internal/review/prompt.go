package review

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/harooos/tdrcluster/internal/cluster"
)

//go:embed prompts/*.md
var promptsFS embed.FS

// PromptConfig is the YAML frontmatter carried by each prompt template,
// the same convention the teacher uses for its analyzer prompts.
type PromptConfig struct {
	Version     string  `yaml:"version"`
	Description string  `yaml:"description"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

type promptTemplate struct {
	Config   PromptConfig
	Template *template.Template
}

type PromptPair struct {
	System string
	User   string
	Config PromptConfig
}

// categoryView and clusterView are the template-facing projections of the
// core entities; query contents are deliberately excluded (spec.md §4.3
// "Contents of category queries are never sent").
type categoryView struct {
	ID          string
	Description string
	QueryCount  int
}

type clusterView struct {
	ID            string
	SamplesJoined string
	QueryCount    int
}

type promptData struct {
	Goal                string
	TargetCategoryRange string
	Categories          []categoryView
	Clusters            []clusterView
}

// Prompts is a loaded, ready-to-render prompt library.
type Prompts struct {
	review *promptTemplate
}

func LoadPrompts() (*Prompts, error) {
	tmpl, err := loadTemplate(promptsFS, "prompts/review.md")
	if err != nil {
		return nil, err
	}
	return &Prompts{review: tmpl}, nil
}

const sampleTruncateLen = 50

// RenderReview builds the system/user prompt pair for one batch, a pure
// function of (categories, batch, goal, target_range) per spec.md §8
// "Round-trip / idempotence".
func (p *Prompts) RenderReview(goal, targetCategoryRange string, categories []*cluster.Category, batch []*cluster.Cluster) (*PromptPair, error) {
	if p == nil || p.review == nil {
		return nil, fmt.Errorf("review prompt not loaded")
	}

	data := promptData{
		Goal:                goal,
		TargetCategoryRange: targetCategoryRange,
	}
	for _, cat := range categories {
		data.Categories = append(data.Categories, categoryView{
			ID:          cat.ID,
			Description: cat.Description,
			QueryCount:  cat.QueryCount(),
		})
	}
	for _, c := range batch {
		data.Clusters = append(data.Clusters, clusterView{
			ID:            c.ID,
			SamplesJoined: joinTruncated(c.Samples, sampleTruncateLen),
			QueryCount:    len(c.Queries),
		})
	}

	var systemBuf, userBuf bytes.Buffer
	if p.review.Template.Lookup("system") != nil {
		if err := p.review.Template.ExecuteTemplate(&systemBuf, "system", data); err != nil {
			return nil, fmt.Errorf("render system prompt: %w", err)
		}
	}
	if err := p.review.Template.ExecuteTemplate(&userBuf, "user", data); err != nil {
		return nil, fmt.Errorf("render user prompt: %w", err)
	}

	return &PromptPair{
		System: strings.TrimSpace(systemBuf.String()),
		User:   strings.TrimSpace(userBuf.String()),
		Config: p.review.Config,
	}, nil
}

func joinTruncated(samples []string, maxLen int) string {
	parts := make([]string, len(samples))
	for i, s := range samples {
		if len(s) > maxLen {
			parts[i] = s[:maxLen] + "..."
		} else {
			parts[i] = s
		}
	}
	return strings.Join(parts, ", ")
}

func loadTemplate(fsys fs.FS, path string) (*promptTemplate, error) {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}

	frontmatter, body, ok, err := splitFrontmatter(string(raw))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("prompt %s missing frontmatter", path)
	}

	var cfg PromptConfig
	if err := yaml.Unmarshal([]byte(frontmatter), &cfg); err != nil {
		return nil, fmt.Errorf("parse prompt config for %s: %w", path, err)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("prompt %s missing model", path)
	}

	tmpl, err := template.New(path).Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}

	return &promptTemplate{Config: cfg, Template: tmpl}, nil
}

func splitFrontmatter(input string) (frontmatter, body string, ok bool, err error) {
	const delimiter = "---\n"
	normalized := strings.ReplaceAll(input, "\r\n", "\n")
	if !strings.HasPrefix(normalized, delimiter) {
		return "", input, false, nil
	}

	parts := strings.SplitN(normalized, delimiter, 3)
	if len(parts) < 3 {
		return "", input, false, fmt.Errorf("malformed frontmatter: closing delimiter not found")
	}
	return strings.TrimRight(parts[1], "\n"), strings.TrimLeft(parts[2], "\n"), true, nil
}
