package utils

import (
	"reflect"
	"testing"
)

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		name string
		args string
		want []string
	}{
		{"two", "0x01, 0x02", []string{"0x01", "0x02"}},
		{"one", "0x01", []string{"0x01"}},
		{"empty", "", nil},
		{"blanks", " , ,0x03,", []string{"0x03"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitAndTrim(tt.args); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitAndTrim() = %v, want %v", got, tt.want)
			}
		})
	}
}
