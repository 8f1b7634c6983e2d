package domain

import (
	"encoding/json"
	"time"
)

// Document es el catalogo completo de producción. Solo se garantiza que la raíz sea un objeto.
type Document map[string]any

// Snapshot es una copia inmutable del Document guardada en un momento dado.
type Snapshot struct {
	ID        int64           `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// SnapshotInfo expone los metadatos de un snapshot sin el payload.
type SnapshotInfo struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Size      int       `json:"size"`
}

// SeedDocument devuelve una copia nueva del catalogo inicial
// (Setor > Modelo > Código > types > baias).
func SeedDocument() Document {
	return Document{
		"Região E": map[string]any{
			"Honda HR-V": map[string]any{
				"3GN": map[string]any{
					"types": map[string]any{
						"3M6XMF7": map[string]any{
							"baias": map[string]any{
								"Baia 01": []any{"Item X", "Item 1", "Item D"},
								"Baia 02": []any{"Item A", "Item B"},
							},
						},
					},
				},
			},
		},
		"Região C": map[string]any{
			"Honda WR-V": map[string]any{
				"3UT": map[string]any{
					"types": map[string]any{
						"39KZMB5": map[string]any{
							"baias": map[string]any{
								"Baia 01": []any{"Item POP", "Item CKD"},
							},
						},
					},
				},
			},
		},
	}
}
