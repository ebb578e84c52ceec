// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-credstore.
//
// go-credstore is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package enforcement

import (
	"testing"

	"github.com/jeremyhahn/go-credstore/pkg/types"
)

func TestSuperEncryptionRequired(t *testing.T) {
	tests := []struct {
		name   string
		params []types.KeyParameter
		flags  types.KeyFlags
		want   bool
	}{
		{
			name: "no parameters",
			want: false,
		},
		{
			name:   "auth bound",
			params: []types.KeyParameter{{Tag: types.TagUserAuthBound}},
			want:   true,
		},
		{
			name:   "secure id binding",
			params: []types.KeyParameter{{Tag: types.TagUserSecureID, Value: int64(42)}},
			want:   true,
		},
		{
			name: "explicit no-auth wins",
			params: []types.KeyParameter{
				{Tag: types.TagUserAuthBound},
				{Tag: types.TagNoAuthRequired},
			},
			want: false,
		},
		{
			name:   "skip flag overrides auth binding",
			params: []types.KeyParameter{{Tag: types.TagUserAuthBound}},
			flags:  types.FlagSkipLskfBinding,
			want:   false,
		},
	}

	policy := NewPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.SuperEncryptionRequired(tt.params, tt.flags); got != tt.want {
				t.Errorf("SuperEncryptionRequired() = %v, want %v", got, tt.want)
			}
		})
	}
}
