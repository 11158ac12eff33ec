package query

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Pattern grammar. Node and relationship patterns carry an alias, an
// optional label, and optional inline properties:
//
//	(n)  (n:Person)  (n:Person {name: "Ada", age: 36})
//	[r]  [:KNOWS]    [r:KNOWS {weight: 2}]
var (
	matchClauseRe  = regexp.MustCompile(`(?is)\bMATCH\s+(.*?)\s+RETURN\b`)
	returnClauseRe = regexp.MustCompile(`(?is)\bRETURN\s+(.*)$`)
	nodeRe         = regexp.MustCompile(`\((\w+)(?::(\w+))?(?:\s*\{([^}]+)\})?\)`)
	relRe          = regexp.MustCompile(`\[(\w+)?(?::(\w+))?(?:\s*\{([^}]+)\})?\]`)
	intLiteralRe   = regexp.MustCompile(`^\d+$`)
	floatLiteralRe = regexp.MustCompile(`^\d+\.\d+$`)
)

// nodePattern is one parsed (alias:Label {props}) element.
type nodePattern struct {
	alias string
	label string
	props []property
}

// relPattern is one parsed [alias:LABEL {props}] element.
type relPattern struct {
	alias string
	label string
	props []property
}

// property is one inline key/value pair. value holds the raw text with
// quotes stripped; numeric properties render as bare SQL literals, strings
// as quoted ones.
type property struct {
	key     string
	value   string
	numeric bool
}

// Node columns that project directly instead of through json_extract.
var directNodeColumns = map[string]bool{
	"id":        true,
	"type":      true,
	"embedding": true,
}

// Translate converts a declarative pattern query into a SQL statement over
// the nodes and edges tables.
//
// A linear pattern chains through the edges table: each relationship becomes
// a JOIN on source_id/target_id, node labels become type comparisons, and
// inline node properties become json_extract conditions against the
// properties column. The output is deterministic for a given query, so it
// is safe to cache.
func Translate(q string) (string, error) {
	matchClause := matchClauseRe.FindStringSubmatch(q)
	if matchClause == nil {
		return "", ErrInvalidQuery
	}
	matchContent := strings.TrimSpace(matchClause[1])

	returnClause := returnClauseRe.FindStringSubmatch(q)
	if returnClause == nil {
		return "", ErrInvalidQuery
	}
	returnContent := strings.TrimSpace(returnClause[1])
	if returnContent == "" {
		return "", ErrInvalidQuery
	}

	nodes, rels, err := parsePattern(matchContent)
	if err != nil {
		return "", err
	}

	return buildSQL(nodes, rels, strings.Split(returnContent, ","))
}

// parsePattern decomposes the MATCH content into an alternating chain of
// node and relationship patterns.
func parsePattern(content string) ([]nodePattern, []relPattern, error) {
	// Reverse arrows would need the JOIN direction flipped; refuse them
	// instead of translating them as forward edges.
	if strings.Contains(content, "<-") {
		return nil, nil, fmt.Errorf("reverse relationship arrows: %w", ErrUnsupportedQuery)
	}

	type element struct {
		pos    int
		isNode bool
		groups []string
	}

	var elements []element
	for _, m := range nodeRe.FindAllStringSubmatchIndex(content, -1) {
		elements = append(elements, element{
			pos:    m[0],
			isNode: true,
			groups: submatches(content, m),
		})
	}
	for _, m := range relRe.FindAllStringSubmatchIndex(content, -1) {
		elements = append(elements, element{
			pos:    m[0],
			isNode: false,
			groups: submatches(content, m),
		})
	}
	if len(elements) == 0 {
		return nil, nil, fmt.Errorf("no node patterns found: %w", ErrUnsupportedQuery)
	}
	sort.Slice(elements, func(i, j int) bool { return elements[i].pos < elements[j].pos })

	var (
		nodes   []nodePattern
		rels    []relPattern
		aliases = map[string]bool{}
	)
	for i, elem := range elements {
		// A valid chain alternates node, relationship, node, ...
		wantNode := i%2 == 0
		if elem.isNode != wantNode {
			return nil, nil, fmt.Errorf("pattern is not a linear node-relationship chain: %w", ErrUnsupportedQuery)
		}

		props, err := parseProperties(elem.groups[2])
		if err != nil {
			return nil, nil, err
		}

		if elem.isNode {
			alias := elem.groups[0]
			if aliases[alias] {
				return nil, nil, fmt.Errorf("duplicate alias %q: %w", alias, ErrUnsupportedQuery)
			}
			aliases[alias] = true
			nodes = append(nodes, nodePattern{alias: alias, label: elem.groups[1], props: props})
			continue
		}

		alias := elem.groups[0]
		if alias == "" {
			alias = fmt.Sprintf("r%d", len(rels)+1)
		}
		if aliases[alias] {
			return nil, nil, fmt.Errorf("duplicate alias %q: %w", alias, ErrUnsupportedQuery)
		}
		aliases[alias] = true
		rels = append(rels, relPattern{alias: alias, label: elem.groups[1], props: props})
	}

	// Alternation starting at a node means the chain must also end on one.
	if len(elements)%2 == 0 {
		return nil, nil, fmt.Errorf("pattern ends on a relationship: %w", ErrUnsupportedQuery)
	}

	return nodes, rels, nil
}

// submatches extracts the capture groups from a FindAllStringSubmatchIndex
// match, with unmatched groups as "".
func submatches(content string, m []int) []string {
	groups := make([]string, 0, len(m)/2-1)
	for g := 2; g < len(m); g += 2 {
		if m[g] < 0 {
			groups = append(groups, "")
			continue
		}
		groups = append(groups, content[m[g]:m[g+1]])
	}
	return groups
}

// parseProperties parses an inline property block like
//
//	name: "Ada", age: 36
//
// preserving declaration order so the generated SQL is stable.
func parseProperties(s string) ([]property, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var props []property
	for _, pair := range strings.Split(s, ",") {
		key, value, found := strings.Cut(pair, ":")
		if !found {
			return nil, fmt.Errorf("malformed property %q: %w", strings.TrimSpace(pair), ErrUnsupportedQuery)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		numeric := intLiteralRe.MatchString(value) || floatLiteralRe.MatchString(value)
		props = append(props, property{key: key, value: value, numeric: numeric})
	}
	return props, nil
}

// buildSQL assembles the SELECT statement from the parsed pattern and the
// RETURN items.
func buildSQL(nodes []nodePattern, rels []relPattern, returnItems []string) (string, error) {
	aliases := map[string]bool{}
	for _, n := range nodes {
		aliases[n.alias] = true
	}
	for _, r := range rels {
		aliases[r.alias] = true
	}

	var selectParts []string
	starSeen := false
	for _, item := range returnItems {
		item = strings.TrimSpace(item)
		alias, field, dotted := strings.Cut(item, ".")

		if !dotted {
			if item != "*" && !aliases[item] {
				return "", fmt.Errorf("unknown alias %q in RETURN: %w", item, ErrUnsupportedQuery)
			}
			if !starSeen {
				selectParts = append(selectParts, "*")
				starSeen = true
			}
			continue
		}

		if !aliases[alias] {
			return "", fmt.Errorf("unknown alias %q in RETURN: %w", alias, ErrUnsupportedQuery)
		}
		if directNodeColumns[field] {
			selectParts = append(selectParts, alias+"."+field)
			continue
		}
		selectParts = append(selectParts,
			fmt.Sprintf("json_extract(%s.properties, '$.%s') AS %s", alias, field, field))
	}
	if len(selectParts) == 0 {
		selectParts = append(selectParts, "*")
	}

	fromParts := []string{fmt.Sprintf("nodes AS %s", nodes[0].alias)}
	for i := 1; i < len(nodes); i++ {
		prev := nodes[i-1].alias
		rel := rels[i-1].alias
		fromParts = append(fromParts,
			fmt.Sprintf("JOIN edges AS %s ON %s.id = %s.source_id", rel, prev, rel),
			fmt.Sprintf("JOIN nodes AS %s ON %s.id = %s.target_id", nodes[i].alias, nodes[i].alias, rel),
		)
	}

	// json_extract returns plain SQL scalars (INTEGER, REAL, TEXT), so
	// comparison values render as plain SQL literals of the matching type.
	var conditions []string
	for _, n := range nodes {
		if n.label != "" {
			conditions = append(conditions, fmt.Sprintf("%s.type = '%s'", n.alias, n.label))
		}
		for _, p := range n.props {
			conditions = append(conditions,
				fmt.Sprintf("json_extract(%s.properties, '$.%s') = %s",
					n.alias, p.key, sqlLiteral(p)))
		}
	}
	for _, r := range rels {
		if r.label != "" {
			conditions = append(conditions, fmt.Sprintf("%s.relation = '%s'", r.alias, r.label))
		}
		for _, p := range r.props {
			// Edges carry no free-form properties; weight is the only
			// filterable value.
			if p.key != "weight" || !p.numeric {
				return "", fmt.Errorf("relationship property %q: %w", p.key, ErrUnsupportedQuery)
			}
			conditions = append(conditions, fmt.Sprintf("%s.weight = %s", r.alias, p.value))
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selectParts, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(strings.Join(fromParts, " "))
	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}
	sb.WriteString(";")
	return sb.String(), nil
}

// sqlLiteral renders a property value as a SQL literal: numbers bare,
// strings quoted with embedded single quotes doubled.
func sqlLiteral(p property) string {
	if p.numeric {
		return p.value
	}
	return "'" + strings.ReplaceAll(p.value, "'", "''") + "'"
}
