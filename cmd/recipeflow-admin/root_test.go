package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/knowledge"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/config"
	"github.com/alchemorsel/recipeflow/internal/infrastructure/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "recipeflow-admin", cmd.Use)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"migrate", "learn", "knowledge", "cards", "token"}, names)
}

func TestTokenMint(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: admin-test-secret
`)

	out, err := execute(t, "--config", path, "token", "mint", "--subject", "ops@example.com", "--ttl", "10m")
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	claims, err := security.NewTokenService(cfg.Auth, zaptest.NewLogger(t)).Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, "operator", claims.Role)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), claims.ExpiresAt.Time, time.Minute)
}

func TestTokenMint_Errors(t *testing.T) {
	path := writeConfig(t, "app:\n  name: recipeflow\n")

	_, err := execute(t, "--config", path, "token", "mint", "--subject", "ops")
	assert.ErrorContains(t, err, "auth.jwt_secret")

	_, err = execute(t, "--config", path, "token", "mint")
	assert.ErrorContains(t, err, "subject")
}

func TestLearnArgs(t *testing.T) {
	_, err := execute(t, "learn")
	assert.ErrorContains(t, err, "cuisine is required")

	_, err = execute(t, "learn", "italian", "--all")
	assert.ErrorContains(t, err, "not both")
}

func TestCardsGenerate_InvalidID(t *testing.T) {
	_, err := execute(t, "cards", "generate", "not-a-uuid")
	assert.ErrorContains(t, err, "must be a UUID")
}

func TestMigrate_SQLiteRejectsVersioning(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: sqlite\n  database: "+filepath.Join(t.TempDir(), "admin")+"\n")

	_, err := execute(t, "--config", path, "migrate", "version")
	assert.ErrorContains(t, err, "postgres driver")

	_, err = execute(t, "--config", path, "migrate", "down", "0")
	assert.ErrorContains(t, err, "positive integer")
}

func TestKnowledgeShow_InvalidOutput(t *testing.T) {
	_, err := execute(t, "knowledge", "show", "thai", "--output", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func sampleKnowledgeBase() *knowledge.KnowledgeBase {
	return &knowledge.KnowledgeBase{
		Cuisine: "thai",
		CommonSacredIngredients: []knowledge.SacredIngredientStat{
			{Ingredient: "fish sauce", Frequency: 100, Count: 3, Reason: "salty umami backbone"},
		},
		CommonSacredTechniques: []string{"pound the paste"},
		TypicalHeroIngredients: []string{"lemongrass"},
		CommonSubstitutions:    []knowledge.Substitution{{Original: "palm sugar", Substitute: "brown sugar"}},
		RecipeCount:            1200,
		AvgQualityScore:        8.25,
		LastLearnedAt:          time.Now().Add(-2 * time.Hour),
	}
}

func TestWriteKnowledgeBase(t *testing.T) {
	kb := sampleKnowledgeBase()

	t.Run("Text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeKnowledgeBase(&buf, kb, "text"))
		out := buf.String()
		assert.Contains(t, out, "Cuisine:       thai")
		assert.Contains(t, out, "Recipes:       1,200")
		assert.Contains(t, out, "2 hours ago")
		assert.Contains(t, out, "fish sauce")
		assert.Contains(t, out, "palm sugar -> brown sugar")
		assert.NotContains(t, out, "Side tasks")
	})

	t.Run("JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeKnowledgeBase(&buf, kb, "json"))

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "thai", decoded["cuisine"])
		assert.EqualValues(t, 1200, decoded["recipe_count"])
	})

	t.Run("YAML", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeKnowledgeBase(&buf, kb, "yaml"))

		var decoded map[string]interface{}
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "thai", decoded["cuisine"])
		assert.Equal(t, 1200, decoded["recipe_count"])
		assert.Contains(t, buf.String(), "ingredient: fish sauce")
	})
}
