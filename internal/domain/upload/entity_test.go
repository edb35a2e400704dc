package upload_test

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alchemorsel/recipeflow/internal/domain/upload"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type UploadTestSuite struct {
	suite.Suite
	now time.Time
}

func (suite *UploadTestSuite) SetupTest() {
	suite.now = time.Now().UTC()
}

func (suite *UploadTestSuite) TestNewUpload() {
	suite.Run("KnownKind_ShouldStartProcessing", func() {
		u, err := upload.NewUpload(upload.SourceKindURL, suite.now)

		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), upload.StatusProcessing, u.Status())
		assert.Equal(suite.T(), upload.SourceKindURL, u.SourceKind())
		assert.Nil(suite.T(), u.RecipeID())
		assert.Nil(suite.T(), u.CompletedAt())
	})

	suite.Run("UnknownKind_ShouldFail", func() {
		u, err := upload.NewUpload("spreadsheet", suite.now)

		assert.Nil(suite.T(), u)
		assert.ErrorIs(suite.T(), err, upload.ErrInvalidSourceKind)
	})
}

func (suite *UploadTestSuite) TestTransitions() {
	suite.Run("Complete_ShouldBeTerminal", func() {
		// Arrange
		u, _ := upload.NewUpload(upload.SourceKindText, suite.now)
		recipeID := uuid.New()

		// Act
		err := u.Complete(recipeID, suite.now)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), upload.StatusCompleted, u.Status())
		assert.Equal(suite.T(), recipeID, *u.RecipeID())
		assert.ErrorIs(suite.T(), u.Fail("late failure", suite.now), upload.ErrUploadTerminal)
		assert.ErrorIs(suite.T(), u.Complete(uuid.New(), suite.now), upload.ErrUploadTerminal)
		assert.ErrorIs(suite.T(), u.AttachRawContent("mem://x"), upload.ErrUploadTerminal)
		assert.Equal(suite.T(), recipeID, *u.RecipeID())
	})

	suite.Run("CompleteWithoutRecipe_ShouldFail", func() {
		u, _ := upload.NewUpload(upload.SourceKindText, suite.now)

		assert.ErrorIs(suite.T(), u.Complete(uuid.Nil, suite.now), upload.ErrMissingRecipeID)
		assert.Equal(suite.T(), upload.StatusProcessing, u.Status())
	})

	suite.Run("Fail_ShouldTruncateMessage", func() {
		// Arrange
		u, _ := upload.NewUpload(upload.SourceKindPDF, suite.now)
		message := strings.Repeat("é", 900)

		// Act
		err := u.Fail(message, suite.now)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), upload.StatusFailed, u.Status())
		assert.Equal(suite.T(), upload.MaxErrorMessageLength, utf8.RuneCountInString(u.ErrorMessage()))
		assert.ErrorIs(suite.T(), u.Complete(uuid.New(), suite.now), upload.ErrUploadTerminal)
	})

	suite.Run("FailWithBlankMessage_ShouldKeepDiagnostic", func() {
		u, _ := upload.NewUpload(upload.SourceKindImage, suite.now)

		require.NoError(suite.T(), u.Fail("   ", suite.now))
		assert.NotEmpty(suite.T(), u.ErrorMessage())
	})
}

func TestUploadTestSuite(t *testing.T) {
	suite.Run(t, new(UploadTestSuite))
}
