// Package knowledge answers free-text customer questions from EcoMarket's
// policy documents and FAQ. It downloads the sources, splits them into
// chunks, indexes them in a vector store and asks a language model to
// answer from the closest chunks.
package knowledge

import (
	"context"
	"errors"

	"github.com/ecomarket/ecobot/internal/vectordb"
)

var (
	// ErrNotFound is returned when a remote source answers 404.
	ErrNotFound = errors.New("knowledge source not found")
	// ErrIndexEmpty is returned when no document could be indexed or the
	// index holds nothing to search.
	ErrIndexEmpty = errors.New("knowledge index is empty")
)

// DefaultBaseURL is where the published EcoMarket documents live.
const DefaultBaseURL = "https://raw.githubusercontent.com/semurillas/GenIA-20252-ICESI/main/Taller%202/Documentos/"

// NoDocumentsMessage is the answer when retrieval finds nothing.
const NoDocumentsMessage = "No se encontraron documentos relevantes en la base de conocimiento para la consulta."

// Answerer answers a free-text question.
type Answerer interface {
	Answer(ctx context.Context, query string) (string, error)
}

// Source is one remote knowledge document.
type Source struct {
	Name string
	Type vectordb.DocumentType
}

// DefaultSources are the documents EcoMarket publishes.
var DefaultSources = []Source{
	{Name: "Politica_de_Devoluciones_EcoMarket.pdf", Type: vectordb.DocTypePolicy},
	{Name: "Terminos_y_Condiciones_Generales_de_Venta_EcoMarket.pdf", Type: vectordb.DocTypeTerms},
	{Name: "Manual_de_Uso_Productos_Ecologicos.pdf", Type: vectordb.DocTypeGuide},
	{Name: "faq_ecomarket.json", Type: vectordb.DocTypeFAQ},
}
