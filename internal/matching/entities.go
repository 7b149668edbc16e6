package matching

import (
	"sort"
	"strings"
)

// entities.go — tabla de sinónimos y canonicalización de entidades.
//
// La tabla mapea frases intercambiables ("Fed" ≈ "Federal Reserve" ≈ "FOMC")
// a una clave canónica: el primer miembro del grupo. Es conocimiento de
// dominio estático y aproximado a propósito — no es NLP general.
//
// Dos clases de grupos:
//   - entidades: actores del mundo real (fed, bitcoin, trump). Participan en
//     la canonicalización Y en el solape de entidades.
//   - aliases léxicos: formas equivalentes de fechas/cifras ("EOY" ≈ "Dec
//     2024", "$100k" ≈ "100,000"). Solo canonicalizan el texto; no son
//     entidades, porque compartir "eoy" no dice nada sobre el evento.

// defaultGroups son los grupos de entidades por defecto. Cada grupo empieza
// por su clave canónica. Frases de menos de 3 caracteres quedan fuera:
// producen demasiado ruido en el escaneo.
var defaultGroups = [][]string{
	{"federal reserve", "fed", "fomc", "jerome powell", "powell"},
	{"bitcoin", "btc"},
	{"ethereum", "eth", "ether"},
	{"solana", "sol"},
	{"donald trump", "trump"},
	{"kamala harris", "harris"},
	{"joe biden", "biden"},
	{"interest rate", "rate cut", "rate hike", "rate decision"},
	{"recession", "economic downturn"},
	{"inflation", "cpi", "consumer price index"},
	{"s&p 500", "spx", "s&p"},
	{"nasdaq", "ndx"},
	{"gdp", "gross domestic product"},
	{"election", "presidential election", "electoral college"},
	{"supreme court", "scotus"},
	{"united states", "usa", "america"},
	{"european union", "eurozone"},
	{"china", "prc", "beijing"},
	{"russia", "kremlin", "moscow"},
	{"ukraine", "kyiv"},
	{"world cup", "fifa world cup"},
	{"super bowl", "superbowl"},
	{"olympics", "olympic games"},
	{"openai", "chatgpt"},
	{"spacex", "starship"},
	{"tesla", "tsla"},
	{"nvidia", "nvda"},
	{"halving", "halvening"},
}

// defaultAliases canonicalizan variantes de fechas y cifras antes de la
// comparación léxica.
var defaultAliases = [][]string{
	{"eoy", "end of year", "year end", "dec 2024", "december 2024", "dec 2025", "december 2025", "dec 2026", "december 2026"},
	{"100k", "100,000", "$100k", "100000"},
	{"50k", "50,000", "$50k", "50000"},
	{"q1", "first quarter"},
	{"q2", "second quarter"},
	{"q3", "third quarter"},
	{"q4", "fourth quarter"},
}

// Table resuelve frases a su grupo de sinónimos y extrae entidades canónicas
// de texto libre.
type Table struct {
	groups  [][]string
	aliases [][]string
	// index: frase (lowercase) → clave canónica de su grupo o alias
	index map[string]string
	// groupIndex: frase → posición del grupo de entidades (para Lookup)
	groupIndex map[string]int
	// phrases ordenadas de más larga a más corta, para que la
	// canonicalización reemplace primero las frases más específicas
	phrases []string
}

// NewTable construye la tabla con el conocimiento de dominio por defecto.
func NewTable() *Table {
	return NewTableWith(defaultGroups, defaultAliases)
}

// NewTableWith construye la tabla con grupos arbitrarios. El primer miembro
// de cada grupo es su clave canónica.
func NewTableWith(groups, aliases [][]string) *Table {
	t := &Table{
		groups:     groups,
		aliases:    aliases,
		index:      make(map[string]string),
		groupIndex: make(map[string]int),
	}
	for i, group := range groups {
		canonical := strings.ToLower(group[0])
		for _, phrase := range group {
			p := strings.ToLower(phrase)
			t.index[p] = canonical
			t.groupIndex[p] = i
			t.phrases = append(t.phrases, p)
		}
	}
	for _, group := range aliases {
		canonical := strings.ToLower(group[0])
		for _, phrase := range group {
			p := strings.ToLower(phrase)
			t.index[p] = canonical
			t.phrases = append(t.phrases, p)
		}
	}
	sort.Slice(t.phrases, func(i, j int) bool {
		return len(t.phrases[i]) > len(t.phrases[j])
	})
	return t
}

// Lookup devuelve el grupo de entidades completo de una frase, o nil si la
// frase no es una entidad conocida.
func (t *Table) Lookup(phrase string) []string {
	i, ok := t.groupIndex[strings.ToLower(phrase)]
	if !ok {
		return nil
	}
	return t.groups[i]
}

// Extract escanea el texto (case-insensitive) buscando cualquier frase de
// cualquier grupo de entidades y devuelve el set de claves canónicas
// encontradas. Matches solapados o anidados se registran todos — no hay
// early exit. Los aliases léxicos no cuentan como entidades.
func (t *Table) Extract(text string) map[string]struct{} {
	lower := strings.ToLower(text)
	found := make(map[string]struct{})
	for _, group := range t.groups {
		for _, phrase := range group {
			if containsPhrase(lower, strings.ToLower(phrase)) {
				found[strings.ToLower(group[0])] = struct{}{}
				// el grupo ya matcheó; seguimos con el resto de grupos
				break
			}
		}
	}
	return found
}

// Canonicalize reemplaza cada ocurrencia de una frase conocida (entidad o
// alias) por su clave canónica, de frase más larga a más corta. Así "Will
// BTC hit 100k by Dec 2024?" y "Bitcoin $100K EOY?" convergen al mismo
// vocabulario antes de comparar léxicamente.
func (t *Table) Canonicalize(text string) string {
	out := strings.ToLower(text)
	for _, phrase := range t.phrases {
		canonical := t.index[phrase]
		if phrase == canonical {
			continue
		}
		out = replacePhrase(out, phrase, canonical)
	}
	return out
}

// EntityOverlap calcula el Jaccard entre dos sets de entidades canónicas.
// Devuelve 0 si cualquiera de los dos lados no tiene entidades reconocidas.
func EntityOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// isWordChar devuelve true para letras y dígitos ASCII.
func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// boundedAt comprueba que la ocurrencia en [i, i+n) no corta una palabra:
// "eth" no debe matchear dentro de "whether".
func boundedAt(text string, i, n int) bool {
	if i > 0 && isWordChar(text[i-1]) && isWordChar(text[i]) {
		return false
	}
	end := i + n
	if end < len(text) && isWordChar(text[end]) && isWordChar(text[end-1]) {
		return false
	}
	return true
}

// containsPhrase busca la frase como substring respetando límites de palabra.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for from := 0; ; {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			return false
		}
		i += from
		if boundedAt(text, i, len(phrase)) {
			return true
		}
		from = i + 1
	}
}

// replacePhrase sustituye todas las ocurrencias con límite de palabra.
func replacePhrase(text, phrase, repl string) string {
	if phrase == "" || phrase == repl {
		return text
	}
	var sb strings.Builder
	for from := 0; ; {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			sb.WriteString(text[from:])
			return sb.String()
		}
		i += from
		if !boundedAt(text, i, len(phrase)) {
			sb.WriteString(text[from : i+1])
			from = i + 1
			continue
		}
		sb.WriteString(text[from:i])
		sb.WriteString(repl)
		from = i + len(phrase)
	}
}
