// Package testutils provides custom assertions and testing utilities
package testutils

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/alchemorsel/recipeflow/internal/domain/card"
	"github.com/alchemorsel/recipeflow/internal/domain/recipe"
	apperrors "github.com/alchemorsel/recipeflow/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RecipeAssertions provides recipe-specific assertion methods
type RecipeAssertions struct {
	t *testing.T
}

// NewRecipeAssertions creates a new recipe assertions helper
func NewRecipeAssertions(t *testing.T) *RecipeAssertions {
	return &RecipeAssertions{t: t}
}

// ValidExtraction asserts the shape every stored recipe must have
func (ra *RecipeAssertions) ValidExtraction(r *recipe.Recipe, msgAndArgs ...interface{}) {
	require.NotNil(ra.t, r, "Recipe should not be nil")
	assert.NotEqual(ra.t, uuid.Nil, r.ID(), "Recipe should have a valid ID")
	assert.NotEmpty(ra.t, r.Title(), "Recipe should have a title")
	assert.NotEmpty(ra.t, r.Slug(), "Recipe should have a slug")
	require.NotEmpty(ra.t, r.Ingredients(), msgAndArgs...)

	for i, ing := range r.Ingredients() {
		assert.Equal(ra.t, r.ID(), ing.RecipeID, "Ingredient %q should belong to the recipe", ing.Name)
		assert.Equal(ra.t, i, ing.SortOrder, "Ingredient %q should keep its position", ing.Name)
	}
}

// SacredIngredients asserts exactly which ingredients carry the sacred flag
func (ra *RecipeAssertions) SacredIngredients(r *recipe.Recipe, expected []string, msgAndArgs ...interface{}) {
	require.NotNil(ra.t, r, "Recipe should not be nil")
	assert.ElementsMatch(ra.t, expected, r.SacredIngredientNames(), msgAndArgs...)
}

// PipelineStatus asserts the recipe's pipeline status
func (ra *RecipeAssertions) PipelineStatus(r *recipe.Recipe, expected recipe.PipelineStatus, msgAndArgs ...interface{}) {
	require.NotNil(ra.t, r, "Recipe should not be nil")
	assert.Equal(ra.t, expected, r.PipelineStatus(), msgAndArgs...)
}

// CardAssertions provides workflow card assertion methods
type CardAssertions struct {
	t *testing.T
}

// NewCardAssertions creates a new card assertions helper
func NewCardAssertions(t *testing.T) *CardAssertions {
	return &CardAssertions{t: t}
}

// ValidSet asserts that cards form a playable set for the recipe: numbered
// 1..n without gaps, each with instructions and a success marker
func (ca *CardAssertions) ValidSet(recipeID uuid.UUID, cards []*card.WorkflowCard, msgAndArgs ...interface{}) {
	require.NotEmpty(ca.t, cards, msgAndArgs...)

	for i, c := range cards {
		assert.Equal(ca.t, recipeID, c.RecipeID(), "Card %d should belong to the recipe", i+1)
		assert.Equal(ca.t, i+1, c.CardNumber(), "Cards should be numbered contiguously")
		assert.NotEmpty(ca.t, c.Instructions(), "Card %d should have instructions", i+1)
		assert.NotEmpty(ca.t, c.SuccessMarker(), "Card %d should have a success marker", i+1)
	}
}

// CountBetween asserts the number of cards falls inside the playable range
func (ca *CardAssertions) CountBetween(cards []*card.WorkflowCard, min, max int, msgAndArgs ...interface{}) {
	assert.GreaterOrEqual(ca.t, len(cards), min, msgAndArgs...)
	assert.LessOrEqual(ca.t, len(cards), max, msgAndArgs...)
}

// HTTPAssertions provides HTTP response assertions
type HTTPAssertions struct {
	t *testing.T
}

// NewHTTPAssertions creates a new HTTP assertions helper
func NewHTTPAssertions(t *testing.T) *HTTPAssertions {
	return &HTTPAssertions{t: t}
}

// StatusCode asserts the HTTP status code
func (ha *HTTPAssertions) StatusCode(resp *http.Response, expectedCode int, msgAndArgs ...interface{}) {
	require.NotNil(ha.t, resp, "Response should not be nil")
	assert.Equal(ha.t, expectedCode, resp.StatusCode, msgAndArgs...)
}

// JSONResponse asserts that the response is valid JSON and unmarshals it
func (ha *HTTPAssertions) JSONResponse(resp *http.Response, target interface{}, msgAndArgs ...interface{}) {
	require.NotNil(ha.t, resp, "Response should not be nil")

	contentType := resp.Header.Get("Content-Type")
	assert.True(ha.t, strings.Contains(contentType, "application/json"),
		"Response should have JSON content type, got: %s", contentType)

	err := json.NewDecoder(resp.Body).Decode(target)
	require.NoError(ha.t, err, msgAndArgs...)
}

// ErrorResponse asserts that the response carries the error envelope with
// the given code
func (ha *HTTPAssertions) ErrorResponse(resp *http.Response, expectedCode apperrors.ErrorCode, msgAndArgs ...interface{}) apperrors.ErrorResponse {
	var envelope apperrors.ErrorResponse
	ha.JSONResponse(resp, &envelope)
	assert.Equal(ha.t, expectedCode, envelope.Error.Code, msgAndArgs...)
	assert.NotEmpty(ha.t, envelope.Error.Message, "Error envelope should carry a message")
	return envelope
}

// HasHeader asserts that a header exists
func (ha *HTTPAssertions) HasHeader(resp *http.Response, headerName string, msgAndArgs ...interface{}) {
	require.NotNil(ha.t, resp, "Response should not be nil")
	assert.NotEmpty(ha.t, resp.Header.Get(headerName), "Response should have header %s", headerName)
}

// SecurityHeaders asserts that security headers are present
func (ha *HTTPAssertions) SecurityHeaders(resp *http.Response) {
	for _, header := range []string{
		"X-Content-Type-Options",
		"X-Frame-Options",
		"Referrer-Policy",
		"Content-Security-Policy",
	} {
		ha.HasHeader(resp, header)
	}
}
