package matching

import (
	"strings"
)

// similarity.go — score de similitud entre títulos de mercados.
//
// La pregunta que responde: ¿"Will Bitcoin hit $100k by Dec 2024?" (venue X)
// y "BTC 100K EOY?" (venue Y) son el mismo evento? Combina similitud de
// secuencia con Jaccard de tokens sobre títulos canonicalizados, y usa el
// solape de entidades como filtro/booster secundario — nunca como reemplazo,
// porque tickers cortos dan falsos positivos por similitud léxica sola.

// Config contiene los parámetros del scorer. Todos los umbrales son
// configuración, no constantes.
type Config struct {
	// CandidateThreshold es el mínimo score léxico para considerar el par
	// siquiera candidato; por debajo las entidades no rescatan el match.
	CandidateThreshold float64
	// EntityBoost escala cuánto sube el score el solape de entidades.
	EntityBoost float64
	// EntityMismatchPenalty multiplica el score cuando ambos títulos tienen
	// entidades reconocidas pero ninguna en común.
	EntityMismatchPenalty float64
}

// DefaultConfig devuelve los umbrales por defecto.
func DefaultConfig() Config {
	return Config{
		CandidateThreshold:    0.35,
		EntityBoost:           0.25,
		EntityMismatchPenalty: 0.5,
	}
}

// pesos de la combinación léxica
const (
	seqWeight     = 0.4
	jaccardWeight = 0.6
)

// Scorer calcula similitud entre títulos usando la tabla de sinónimos.
type Scorer struct {
	table *Table
	cfg   Config
}

// NewScorer crea un Scorer con la tabla y configuración dadas.
func NewScorer(table *Table, cfg Config) *Scorer {
	if table == nil {
		table = NewTable()
	}
	return &Scorer{table: table, cfg: cfg}
}

// Score devuelve la similitud entre dos títulos en [0,1]. Es simétrico y
// reflexivo (score(a,a) == 1). Los callers eligen su propio umbral de
// aceptación: clustering usa uno más estricto que búsqueda de relacionados.
func (s *Scorer) Score(a, b string) float64 {
	na := s.table.Canonicalize(a)
	nb := s.table.Canonicalize(b)
	if na == nb {
		return 1.0
	}

	lex := seqWeight*SequenceRatio(na, nb) + jaccardWeight*TokenJaccard(na, nb)
	if lex < s.cfg.CandidateThreshold {
		return lex
	}

	ea := s.table.Extract(na)
	eb := s.table.Extract(nb)
	overlap := EntityOverlap(ea, eb)

	// Ambos lados reconocen entidades pero ninguna coincide: casi seguro son
	// eventos distintos que comparten plantilla ("X hit $100k?").
	if len(ea) > 0 && len(eb) > 0 && overlap == 0 {
		return lex * s.cfg.EntityMismatchPenalty
	}

	score := lex + s.cfg.EntityBoost*overlap
	if score > 1 {
		return 1
	}
	return score
}

// SequenceRatio es la similitud de secuencia normalizada entre dos strings:
// 2×LCS(a,b) / (len(a)+len(b)), sobre runas.
func SequenceRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	lcs := lcsLength(ra, rb)
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

// lcsLength calcula el largo de la subsecuencia común más larga con DP de
// dos filas: O(len(a)×len(b)) tiempo, O(len(b)) memoria.
func lcsLength(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// stopWords son palabras demasiado comunes en títulos de mercados para
// aportar señal.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "will": {}, "would": {}, "be": {},
	"is": {}, "are": {}, "was": {}, "do": {}, "does": {}, "did": {},
	"by": {}, "in": {}, "on": {}, "at": {}, "of": {}, "to": {}, "for": {},
	"and": {}, "or": {}, "vs": {}, "before": {}, "after": {}, "this": {},
	"that": {}, "it": {}, "its": {}, "their": {}, "there": {},
}

// TokenJaccard compara los sets de palabras de dos títulos (tokenizados por
// whitespace, sin stop words, puntuación recortada).
func TokenJaccard(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// tokenSet tokeniza por whitespace, descarta stop words y recorta la
// puntuación de los bordes ("$100k?" → "100k").
func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(s)) {
		tok := strings.Trim(f, "?!.,:;()[]{}'\"$#")
		if tok == "" {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}
