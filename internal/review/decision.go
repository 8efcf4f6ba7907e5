package review

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/harooos/tdrcluster/internal/cluster"
)

// rawDecisionDoc and rawDecision mirror the wire shape described in
// spec.md §6: an opaque <decisions> document with <decision> children,
// each carrying a comma-separated <id> and action-specific children.
type rawDecisionDoc struct {
	XMLName   xml.Name      `xml:"decisions"`
	Decisions []rawDecision `xml:"decision"`
}

type rawDecision struct {
	ID                string `xml:"id"`
	Action            string `xml:"action"`
	Description       string `xml:"description"`
	TargetID          string `xml:"target_id"`
	DescriptionUpdate string `xml:"description_update"`
	KValue            string `xml:"k_value"`
}

var decisionsOpenTag = regexp.MustCompile(`(?s)<decisions>`)

// bareAmpersand matches an `&` together with the well-formed XML entity
// reference it begins, if any; ParseDecisions escapes only the matches
// that are a lone `&` before handing the body to encoding/xml (spec.md §6
// "escape bare & that is not an entity").
var bareAmpersand = regexp.MustCompile(`&(amp;|lt;|gt;|quot;|apos;|#\d+;|#x[0-9a-fA-F]+;)?`)

// ParseDecisions implements the tolerant preprocessing + strict parse
// described in spec.md §4.3/§6: strip any leading text before the root
// element, escape bare ampersands, then parse and validate against the
// batch's cluster id set.
func ParseDecisions(raw string, batch []*cluster.Cluster, categories *cluster.CategoryMap) ([]*cluster.Decision, error) {
	stripped, err := stripLeadingText(raw)
	if err != nil {
		return nil, err
	}
	escaped := bareAmpersand.ReplaceAllStringFunc(stripped, func(m string) string {
		if m == "&" {
			return "&amp;"
		}
		return m
	})

	var doc rawDecisionDoc
	if err := xml.Unmarshal([]byte(escaped), &doc); err != nil {
		return nil, fmt.Errorf("malformed decisions document: %w", err)
	}

	return validateAndBuild(doc.Decisions, batch, categories)
}

func stripLeadingText(raw string) (string, error) {
	loc := decisionsOpenTag.FindStringIndex(raw)
	if loc == nil {
		return "", fmt.Errorf("no <decisions> root element found in response")
	}
	return raw[loc[0]:], nil
}

// validateAndBuild enforces every rule in spec.md §4.3 "Validation rules"
// and constructs the tagged Decision sum type; it never hands callers an
// untyped document (spec.md §9 "Untyped decision documents").
func validateAndBuild(raw []rawDecision, batch []*cluster.Cluster, categories *cluster.CategoryMap) ([]*cluster.Decision, error) {
	batchIDs := make(map[string]bool, len(batch))
	for _, c := range batch {
		batchIDs[c.ID] = true
	}

	seen := make(map[string]bool, len(batch))
	decisions := make([]*cluster.Decision, 0, len(raw))

	for _, rd := range raw {
		refs := splitRefs(rd.ID)
		if len(refs) == 0 {
			return nil, fmt.Errorf("decision has no cluster refs")
		}

		for _, ref := range refs {
			if !batchIDs[ref] {
				return nil, fmt.Errorf("decision references unknown cluster %q", ref)
			}
			if seen[ref] {
				return nil, fmt.Errorf("cluster %q referenced by more than one decision", ref)
			}
			seen[ref] = true
		}

		d, err := buildDecision(rd, refs, categories)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}

	if len(seen) != len(batchIDs) {
		missing := make([]string, 0)
		for id := range batchIDs {
			if !seen[id] {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("decision set omits batch clusters: %v", missing)
	}

	return decisions, nil
}

func buildDecision(rd rawDecision, refs []string, categories *cluster.CategoryMap) (*cluster.Decision, error) {
	switch cluster.Action(rd.Action) {
	case cluster.ActionCreate:
		desc := strings.TrimSpace(rd.Description)
		if desc == "" {
			return nil, fmt.Errorf("create decision on %v missing description", refs)
		}
		return &cluster.Decision{ClusterRefs: refs, Action: cluster.ActionCreate, Description: desc}, nil

	case cluster.ActionAssign:
		targetID := strings.TrimSpace(rd.TargetID)
		if targetID == "" {
			return nil, fmt.Errorf("assign decision on %v missing target_id", refs)
		}
		if _, ok := categories.Get(targetID); !ok {
			return nil, fmt.Errorf("assign decision on %v references unknown target_id %q", refs, targetID)
		}
		update := strings.TrimSpace(rd.DescriptionUpdate)
		if update == "" {
			update = cluster.NoDescriptionUpdate
		}
		return &cluster.Decision{
			ClusterRefs:       refs,
			Action:            cluster.ActionAssign,
			TargetID:          targetID,
			DescriptionUpdate: update,
		}, nil

	case cluster.ActionSubdivide:
		if len(refs) != 1 {
			return nil, fmt.Errorf("subdivide decision must reference exactly one cluster, got %v", refs)
		}
		k, err := strconv.Atoi(strings.TrimSpace(rd.KValue))
		if err != nil {
			return nil, fmt.Errorf("subdivide decision on %v has non-integer k_value %q: %w", refs, rd.KValue, err)
		}
		if k < 2 {
			return nil, fmt.Errorf("subdivide decision on %v has k_value %d, must be >= 2", refs, k)
		}
		return &cluster.Decision{ClusterRefs: refs, Action: cluster.ActionSubdivide, KValue: k}, nil

	default:
		return nil, fmt.Errorf("decision on %v has unknown action %q", refs, rd.Action)
	}
}

func splitRefs(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
