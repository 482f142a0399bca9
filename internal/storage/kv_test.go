package storage

import (
	"errors"
	"testing"
	"time"
)

func TestKVSetGet(t *testing.T) {
	db := openTestDB(t)

	if err := db.KVSet("key1", "value1", 0); err != nil {
		t.Fatalf("KVSet failed: %v", err)
	}
	value, err := db.KVGet("key1")
	if err != nil {
		t.Fatalf("KVGet failed: %v", err)
	}
	if value != "value1" {
		t.Errorf("value = %q, want value1", value)
	}
}

func TestKVSet_Overwrite(t *testing.T) {
	db := openTestDB(t)

	_ = db.KVSet("key1", "value1", 0)
	_ = db.KVSet("key1", "value2", 0)
	value, _ := db.KVGet("key1")
	if value != "value2" {
		t.Errorf("value = %q, want value2", value)
	}
}

func TestKVGet_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.KVGet("nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestKVGet_Expired(t *testing.T) {
	db := openTestDB(t)

	_ = db.KVSet("expired", "value", time.Nanosecond)
	time.Sleep(time.Millisecond)
	_, err := db.KVGet("expired")
	if !errors.Is(err, ErrNotFound) {
		t.Error("expired key should not be found")
	}
}

func TestKVDelete(t *testing.T) {
	db := openTestDB(t)

	_ = db.KVSet("del_key", "value", 0)
	if err := db.KVDelete("del_key"); err != nil {
		t.Fatalf("KVDelete failed: %v", err)
	}
	_, err := db.KVGet("del_key")
	if !errors.Is(err, ErrNotFound) {
		t.Error("key should be deleted")
	}
}

func TestKVList(t *testing.T) {
	db := openTestDB(t)

	_ = db.KVSet("task:a", "va", 0)
	_ = db.KVSet("task:b", "vb", 0)
	_ = db.KVSet("other:c", "vc", 0)

	result, err := db.KVList("task:")
	if err != nil {
		t.Fatalf("KVList failed: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("len(result) = %d, want 2", len(result))
	}
}

func TestKVCleanExpired(t *testing.T) {
	db := openTestDB(t)

	_ = db.KVSet("valid", "v", 0)
	_ = db.KVSet("exp1", "v", time.Nanosecond)
	_ = db.KVSet("exp2", "v", time.Nanosecond)
	time.Sleep(time.Millisecond)

	deleted, err := db.KVCleanExpired()
	if err != nil {
		t.Fatalf("KVCleanExpired failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
}
