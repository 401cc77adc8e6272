package store

import "testing"

func TestMigrateArgVersion(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    int
		wantErr bool
	}{
		{"valid", []string{"version", "3"}, 3, false},
		{"zero", []string{"force", "0"}, 0, false},
		{"missing", []string{"version"}, 0, true},
		{"negative", []string{"version", "-1"}, 0, true},
		{"not a number", []string{"version", "two"}, 0, true},
		{"trailing junk", []string{"version", "2x"}, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := migrateArgVersion(tc.args)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("version = %d, want %d", got, tc.want)
			}
		})
	}
}
