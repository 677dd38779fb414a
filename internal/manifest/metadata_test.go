package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMetadata(t *testing.T) {
	text := `LISTA DE DISTRIBUIÇÃO INTERNA
Impresso em: 07/01/2025 08:15
Total de objetos:  42
Data de Devolução: 17/01/2025`

	meta := ExtractMetadata(text)

	assert.Equal(t, 42, meta.ExpectedTotal)
	require.NotNil(t, meta.Arrival)
	assert.Equal(t, "07/01/2025", meta.Arrival.Date)
	assert.Equal(t, "07/01/2025", meta.ArrivalText)
	assert.Equal(t, "2025-01-07", meta.Arrival.DateISO)
	require.NotNil(t, meta.Return)
	assert.Equal(t, "2025-01-17", meta.Return.DateISO)
}

func TestExtractMetadata_MissingFields(t *testing.T) {
	meta := ExtractMetadata("no header here")

	assert.Zero(t, meta.ExpectedTotal)
	assert.Nil(t, meta.Arrival)
	assert.Nil(t, meta.Return)
	assert.Empty(t, meta.ArrivalText)
}

func TestExtractMetadata_InvalidDateKeepsText(t *testing.T) {
	meta := ExtractMetadata("Impresso em: 40/01/2025\nData de Devolução: 10/01/1999")

	assert.Nil(t, meta.Arrival)
	assert.Equal(t, "40/01/2025", meta.ArrivalText)
	assert.Nil(t, meta.Return)
	assert.Equal(t, "10/01/1999", meta.ReturnText)
}
