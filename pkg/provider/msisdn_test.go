package provider

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeMSISDN(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "local format", input: "0911223344", want: "+251911223344"},
		{name: "local format safaricom range", input: "0712345678", want: "+251712345678"},
		{name: "international with plus", input: "+251911223344", want: "+251911223344"},
		{name: "international without plus", input: "251911223344", want: "+251911223344"},
		{name: "spaces and dashes stripped", input: "09 11-22 33 44", want: "+251911223344"},
		{name: "empty", input: "", wantErr: true},
		{name: "too short", input: "091122334", wantErr: true},
		{name: "too long", input: "09112233445", wantErr: true},
		{name: "bad subscriber prefix", input: "0811223344", wantErr: true},
		{name: "letters", input: "09112233ab", wantErr: true},
		{name: "foreign country code", input: "+254911223344", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeMSISDN(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeMSISDN_EquivalentFormsCanonicalize(t *testing.T) {
	forms := []string{"0911223344", "+251911223344", "251911223344", "0911 22 33 44"}
	for _, form := range forms {
		got, err := NormalizeMSISDN(form)
		require.NoError(t, err)
		require.Equal(t, "+251911223344", got)
	}
}
