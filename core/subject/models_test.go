package subject

import (
	"testing"
)

func TestGenerateCode(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "Advanced Web Systems", want: "ADVWEBSYS"},
		{name: "Math", want: "MAT"},
		{name: "  Intro   to  AI ", want: "INTTOAI"},
		{name: "Álgebra Lineal", want: "ÁLGLIN"},
		{name: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateCode(tt.name); got != tt.want {
				t.Errorf("GenerateCode() = %v, want %v", got, tt.want)
			}
		})
	}
}
