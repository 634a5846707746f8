// ABOUTME: AI-powered sample row generator for seeded tables.
// ABOUTME: Uses OpenAI when a key is configured, static templates otherwise.

package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/constructive-io/gridbase/internal/schema"
)

// Generator produces sample rows for any cataloged table. With an OpenAI
// key it asks the model for realistic values and falls back to static
// templates on any failure.
type Generator struct {
	client *openai.Client
	useAI  bool
	model  string
	logger *zap.Logger
}

// NewGenerator creates a generator, loading the API key from .env if available.
func NewGenerator(logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{logger: logger}

	// Try to load .env from current dir or parent dirs
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		godotenv.Load(filepath.Join(home, ".env"))
	}

	g.model = os.Getenv("OPENAI_MODEL")
	if g.model == "" {
		g.model = "gpt-5-mini"
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		g.client = openai.NewClient(apiKey)
		g.useAI = true
		g.logger.Info("seeding with AI-generated rows", zap.String("model", g.model))
	} else {
		g.logger.Info("no OPENAI_API_KEY set, seeding with static rows")
	}

	return g
}

// Rows returns count sample rows for def, keyed by grid field name and
// ready for InsertRow. Relation keys, id, and timestamps are left empty
// for the caller to fill.
func (g *Generator) Rows(ctx context.Context, def *schema.TableDef, count int) []map[string]any {
	if count <= 0 {
		return nil
	}
	if !g.useAI {
		return staticRows(def, count)
	}

	rows, err := g.generateRows(ctx, def, count)
	if err != nil || len(rows) == 0 {
		g.logger.Warn("sample row generation failed, using static rows",
			zap.String("table", def.Name), zap.Error(err))
		return staticRows(def, count)
	}
	if len(rows) > count {
		rows = rows[:count]
	}
	return rows
}

func (g *Generator) generateRows(ctx context.Context, def *schema.TableDef, count int) ([]map[string]any, error) {
	rows, err := callOpenAI[[]map[string]any](ctx, g.client, g.model, rowPrompt(def, count))
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		scrubRow(def, row)
	}
	return rows, nil
}

// rowPrompt describes the table's editable fields so the model returns
// objects InsertRow can take as-is.
func rowPrompt(def *schema.TableDef, count int) string {
	keyCols := relationKeyColumns(def)

	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d realistic sample rows for a database table named %q.\n", count, def.Name)
	if def.Comment != "" {
		fmt.Fprintf(&b, "The table is described as: %s\n", def.Comment)
	}
	b.WriteString("Fields:\n")
	for _, f := range def.Fields {
		if keyCols[f.Name] {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s", schema.GqlFieldName(f.Name), fieldKind(f))
		if f.NotNull {
			b.WriteString(", required")
		}
		b.WriteString(")\n")
	}
	b.WriteString(`
Return a JSON array of objects using exactly those field names.
Booleans must be JSON booleans, numbers JSON numbers, timestamps ISO 8601 strings.
Vary the values realistically; do not number them "1, 2, 3".
Do not include id, createdAt, updatedAt, or any field not listed.`)
	return b.String()
}

func fieldKind(f schema.FieldDef) string {
	if f.Subtype != "" {
		return f.Subtype
	}
	return f.Type
}

// scrubRow drops reserved keys, relation keys, and anything the model
// invented that is not a real field.
func scrubRow(def *schema.TableDef, row map[string]any) {
	keyCols := relationKeyColumns(def)
	allowed := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		if keyCols[f.Name] {
			continue
		}
		allowed[schema.GqlFieldName(f.Name)] = true
	}
	for k := range row {
		if !allowed[k] {
			delete(row, k)
		}
	}
}

// relationKeyColumns returns the snake_case key columns owned by relations.
func relationKeyColumns(def *schema.TableDef) map[string]bool {
	out := make(map[string]bool, len(def.Relations))
	for _, rel := range def.Relations {
		if rel.KeyColumn != "" {
			out[rel.KeyColumn] = true
		}
	}
	return out
}

func callOpenAI[T any](ctx context.Context, client *openai.Client, model, prompt string) (T, error) {
	var result T

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a data generator. Always respond with valid JSON only, no markdown or explanation.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return result, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return result, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return result, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	return result, nil
}
