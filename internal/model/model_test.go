package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDefaultPoolConfig(t *testing.T) {
	pc := DefaultPoolConfig()

	if pc.MaxOpenConns != 25 {
		t.Errorf("MaxOpenConns = %d, want 25", pc.MaxOpenConns)
	}
	if pc.MaxIdleConns != 5 {
		t.Errorf("MaxIdleConns = %d, want 5", pc.MaxIdleConns)
	}
	if pc.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("ConnMaxLifetime = %v, want %v", pc.ConnMaxLifetime, 5*time.Minute)
	}
	if pc.ConnMaxIdleTime != 1*time.Minute {
		t.Errorf("ConnMaxIdleTime = %v, want %v", pc.ConnMaxIdleTime, 1*time.Minute)
	}
}

func TestSourceConfigOmitsEmptyDSN(t *testing.T) {
	sc := SourceConfig{Name: "shop", Driver: "sqlite", IsActive: true, Pool: DefaultPoolConfig()}

	b, err := json.Marshal(sc)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if _, ok := m["dsn"]; ok {
		t.Error("expected 'dsn' key to be omitted when DSN is empty")
	}
	if m["schema"] != "" {
		t.Errorf("schema = %v, want empty string", m["schema"])
	}
}

func TestColumnOptionalFieldsOmitted(t *testing.T) {
	b, err := json.Marshal(Column{Name: "id", GoType: "int64"})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	for _, key := range []string{"default", "max_length", "db_type", "comment"} {
		if _, ok := m[key]; ok {
			t.Errorf("%s should be omitted when unset", key)
		}
	}
}
