package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindToolFailure, Stage: "dump", Message: "mysqldump exited with status 2", Output: "access denied\n"}
	assert.Equal(t, "dump: mysqldump exited with status 2, output: access denied", err.Error())

	err = New(KindConnectivity, "connecting to db.local:3306", errors.New("connection refused"))
	assert.Equal(t, "connecting to db.local:3306: connection refused", err.Error())
}

func TestWithStage_KeepsKind(t *testing.T) {
	base := ToolFailure("df exited with status 1", "")
	staged := WithStage(fmt.Errorf("df: %w", base), "check_disk", KindProvider)

	assert.True(t, Is(staged, KindToolFailure))
	assert.Equal(t, "check_disk", StageOf(staged))
	assert.Empty(t, base.Stage)
}

func TestWithStage_ClassifiesForeignErrors(t *testing.T) {
	cause := errors.New("throttled")
	staged := WithStage(cause, "upload", KindProvider)

	assert.True(t, Is(staged, KindProvider))
	assert.Equal(t, "upload", StageOf(staged))
	assert.ErrorIs(t, staged, cause)
}

func TestWithStage_Nil(t *testing.T) {
	assert.NoError(t, WithStage(nil, "upload", KindProvider))
}

func TestMissingDatabases(t *testing.T) {
	err := MissingDatabases([]string{"billing", "audit"})

	assert.True(t, Is(err, KindValidation))
	assert.Equal(t, []string{"billing", "audit"}, err.Missing)
	assert.Contains(t, err.Error(), "billing, audit")
}

func TestStageOf_PlainError(t *testing.T) {
	assert.Empty(t, StageOf(errors.New("boom")))
	assert.False(t, Is(errors.New("boom"), KindQuery))
}
