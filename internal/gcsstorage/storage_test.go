package gcsstorage

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/dharsanguruparan/extractiq/internal/model"
)

func TestClassify(t *testing.T) {
	if err := classify("open object", "k", fmt.Errorf("wrapped: %w", storage.ErrObjectNotExist)); !model.IsKind(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	err := classify("write object", "k", &googleapi.Error{Code: 412, Message: "conditionNotMet"})
	if model.IsKind(err, model.ErrNotFound) || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected precondition error, got %v", err)
	}

	cause := errors.New("network down")
	if err := classify("delete object", "k", cause); !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
}
