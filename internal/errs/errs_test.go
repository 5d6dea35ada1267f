package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrap_NilPassthrough(t *testing.T) {
	if Wrap(StorageFatal, "op", nil) != nil {
		t.Fatal("expected nil wrap of nil error")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Wrap(StorageTransient, "store", errors.New("lock timeout"))) {
		t.Fatal("expected storage-transient to be retryable")
	}
	if Retryable(Wrap(StorageFatal, "store", errors.New("constraint violation"))) {
		t.Fatal("expected storage-fatal not to be retryable")
	}
	if Retryable(errors.New("untagged")) {
		t.Fatal("expected untagged error not to be retryable")
	}
}

func TestFatal(t *testing.T) {
	if !Fatal(Wrap(Config, "load", errors.New("missing option"))) {
		t.Fatal("expected config error to be fatal")
	}
	if Fatal(Wrap(GraphUnresolved, "resolve", errors.New("no target"))) {
		t.Fatal("expected graph-unresolved not to be fatal")
	}
}

func TestIs_Unwraps(t *testing.T) {
	inner := Wrap(EmbeddingTooLarge, "embed", errors.New("too long"))
	outer := fmt.Errorf("batch failed: %w", inner)
	if !Is(outer, EmbeddingTooLarge) {
		t.Fatal("expected Is to match kind")
	}
	if Is(outer, Parse) {
		t.Fatal("expected Is not to match unrelated kind")
	}
}
