package database_test

import (
	"slices"
	"testing"

	"github.com/platforma-dev/ttrpg/database"
)

func TestSplitBatches(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "two batches",
			script: "CREATE TABLE t(x int);\nGO\nINSERT INTO t VALUES(1);",
			want:   []string{"CREATE TABLE t(x int);", "INSERT INTO t VALUES(1);"},
		},
		{
			name:   "no separator",
			script: "\n  CREATE TABLE t(x int);\nINSERT INTO t VALUES(1);\n\n",
			want:   []string{"CREATE TABLE t(x int);\nINSERT INTO t VALUES(1);"},
		},
		{
			name:   "crlf line endings",
			script: "CREATE TABLE t(x int);\r\nGO\r\nINSERT INTO t VALUES(1);\r\n",
			want:   []string{"CREATE TABLE t(x int);", "INSERT INTO t VALUES(1);"},
		},
		{
			name:   "mixed line endings",
			script: "SELECT 1;\r\nGO\nSELECT 2;\nGO\r\nSELECT 3;",
			want:   []string{"SELECT 1;", "SELECT 2;", "SELECT 3;"},
		},
		{
			name:   "leading and trailing separators dropped",
			script: "GO\nSELECT 1;\nGO\n\nGO\n   \nGO\nSELECT 2;\nGO\n",
			want:   []string{"SELECT 1;", "SELECT 2;"},
		},
		{
			name:   "separator with surrounding blanks",
			script: "SELECT 1;\n  GO\t\nSELECT 2;",
			want:   []string{"SELECT 1;", "SELECT 2;"},
		},
		{
			name:   "separator must stand alone",
			script: "SELECT 1; GO\nGOTO label;\ngo\nGO;\nSELECT 'GO';",
			want:   []string{"SELECT 1; GO\nGOTO label;\ngo\nGO;\nSELECT 'GO';"},
		},
		{
			name:   "whitespace only",
			script: " \n\t\r\n",
			want:   nil,
		},
		{
			name:   "empty",
			script: "",
			want:   nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := database.SplitBatches(tc.script)
			if !slices.Equal(got, tc.want) {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
