package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/joeblew999/plat-stat/internal/ingest"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestObservationsLatestWins(t *testing.T) {
	ctx := context.Background()
	obs, err := NewObservations(ctx, openMemory(t))
	if err != nil {
		t.Fatal(err)
	}

	first := []ingest.Observation{
		{Source: "crime.json", Region: "КОСТАНАЙСКАЯ ОБЛАСТЬ", Key: "crime_2021", Year: 2021, Value: 70},
		{Source: "crime.json", Region: "АКМОЛИНСКАЯ ОБЛАСТЬ", Key: "crime_2021", Year: 2021, Value: 40},
	}
	second := []ingest.Observation{
		{Source: "crime.json", Region: "КОСТАНАЙСКАЯ ОБЛАСТЬ", Key: "crime_2021", Year: 2021, Value: 80},
	}
	if err := obs.Save(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := obs.Save(ctx, second); err != nil {
		t.Fatal(err)
	}

	latest, err := obs.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		region string
		want   float64
	}{
		{"КОСТАНАЙСКАЯ ОБЛАСТЬ", 80},
		{"АКМОЛИНСКАЯ ОБЛАСТЬ", 40},
	}
	for _, tt := range tests {
		if got := latest[tt.region]["crime_2021"]; got != tt.want {
			t.Fatalf("%s crime_2021=%v, want %v", tt.region, got, tt.want)
		}
	}
}

func TestObservationsSchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t)
	for i := 0; i < 2; i++ {
		if _, err := NewObservations(ctx, conn); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
}
