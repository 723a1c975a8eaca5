package fertilizer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAnnotate(t *testing.T) {
	tests := []struct {
		name        string
		temperature *float64
		humidity    *float64
		rainfall    *float64
		want        []string
	}{
		{name: "no inputs", want: []string{SoilTestAdvisory}},
		{name: "all triggered", temperature: ptr(40), humidity: ptr(90), rainfall: ptr(300),
			want: []string{HeatAdvisory, LowRainfallAdvisory, HumidityAdvisory}},
		{name: "thresholds are exclusive", temperature: ptr(38), humidity: ptr(85), rainfall: ptr(500),
			want: []string{SoilTestAdvisory}},
		{name: "rainfall only", rainfall: ptr(0), want: []string{LowRainfallAdvisory}},
		{name: "heat and humidity", temperature: ptr(38.1), humidity: ptr(100),
			want: []string{HeatAdvisory, HumidityAdvisory}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Annotate(tt.temperature, tt.humidity, tt.rainfall)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Annotate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
