package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferColumns(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   ColumnMap
	}{
		{
			name:   "standard header",
			header: []string{"Grupo", "Data", "Posição", "Objeto", "Destinatário"},
			want: ColumnMap{
				RoleGroup: 0, RoleDate: 1, RolePosition: 2, RoleTrackingCode: 3, RoleRecipient: 4,
			},
		},
		{
			name:   "received date column is not the date",
			header: []string{"Objeto", "Data de Recebimento", "Data", "Destinatário"},
			want: ColumnMap{
				RoleTrackingCode: 0, RoleDate: 2, RoleRecipient: 3,
			},
		},
		{
			name:   "first matching cell wins",
			header: []string{"Objeto", "Objeto 2", "Destinatario"},
			want: ColumnMap{
				RoleTrackingCode: 0, RoleRecipient: 2,
			},
		},
		{
			name:   "noisy header falls back to positions",
			header: []string{"Grup0", "D4ta", "P0s", "0bj", "Dest", "Assinatura"},
			want: ColumnMap{
				RoleGroup: 0, RoleDate: 1, RolePosition: 2, RoleTrackingCode: 3, RoleRecipient: 4,
			},
		},
		{
			name:   "noisy short header keeps keyword matches",
			header: []string{"Grupo", "xx", "yy"},
			want:   ColumnMap{RoleGroup: 0},
		},
		{
			name:   "empty header",
			header: nil,
			want:   ColumnMap{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferColumns(tt.header))
		})
	}
}

func TestColumnMapCell(t *testing.T) {
	cols := ColumnMap{RoleTrackingCode: 1, RoleRecipient: 5}
	row := []string{"1", "  AB864450494BR  "}

	assert.Equal(t, "AB864450494BR", cols.Cell(row, RoleTrackingCode))
	assert.Equal(t, "", cols.Cell(row, RoleRecipient), "short row")
	assert.Equal(t, "", cols.Cell(row, RoleDate), "unmapped role")

	idx, ok := cols.Index(RoleRecipient)
	assert.True(t, ok)
	assert.Equal(t, 5, idx)
}
