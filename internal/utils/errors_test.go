package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestAppErrorWrapping(t *testing.T) {
	err := NewPathError("load snapshot", "/data/x.parquet", "open file", fs.ErrNotExist)
	want := "load snapshot /data/x.parquet: open file: file does not exist"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
	if !IsNotExist(err) {
		t.Fatalf("expected IsNotExist to see through AppError")
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected errors.As to find *AppError")
	}
	if appErr.Msg != "open file" {
		t.Fatalf("expected msg %q, got %q", "open file", appErr.Msg)
	}

	if got := NewAppError("load manifests", "no manifests", nil).Error(); got != "load manifests: no manifests" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestIsNotExistThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("resolve tier1: %w", NewAppError("latest snapshot", "no match", fs.ErrNotExist))
	if !IsNotExist(wrapped) {
		t.Fatalf("expected wrapped not-exist error to be detected")
	}
	if IsNotExist(NewAppError("decode", "bad header", errors.New("corrupt"))) {
		t.Fatalf("expected unrelated error not to be reported as missing")
	}
	if IsNotExist(nil) {
		t.Fatalf("expected nil error not to be reported as missing")
	}
}
