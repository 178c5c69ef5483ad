package gridfsstorage

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dharsanguruparan/extractiq/internal/model"
)

func TestParseRef(t *testing.T) {
	oid := primitive.NewObjectID()
	got, err := parseRef(oid.Hex())
	if err != nil || got != oid {
		t.Fatalf("parseRef(%s) = %v, %v", oid.Hex(), got, err)
	}
	if _, err := parseRef("documents/abc/file.pdf"); !model.IsKind(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign ref, got %v", err)
	}
}
