package review

import (
	"strings"
	"testing"

	"github.com/harooos/tdrcluster/internal/cluster"
)

func batchOf(ids ...string) []*cluster.Cluster {
	out := make([]*cluster.Cluster, len(ids))
	for i, id := range ids {
		out[i] = &cluster.Cluster{ID: id}
	}
	return out
}

func TestParseDecisionsCreate(t *testing.T) {
	raw := `<decisions>
  <decision>
    <id>cluster-1,cluster-2</id>
    <action>create</action>
    <description>Users asking for a replacement card</description>
  </decision>
</decisions>`

	decisions, err := ParseDecisions(raw, batchOf("cluster-1", "cluster-2"), cluster.NewCategoryMap())
	if err != nil {
		t.Fatalf("ParseDecisions() error = %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("got %d decisions, want 1", len(decisions))
	}
	d := decisions[0]
	if d.Action != cluster.ActionCreate || d.Description == "" {
		t.Errorf("decision = %+v, want populated create", d)
	}
	if len(d.ClusterRefs) != 2 {
		t.Errorf("ClusterRefs = %v, want 2 refs", d.ClusterRefs)
	}
}

func TestParseDecisionsAssignUnknownTarget(t *testing.T) {
	raw := `<decisions>
  <decision>
    <id>cluster-1</id>
    <action>assign</action>
    <target_id>CAT-999</target_id>
    <description_update>no_update</description_update>
  </decision>
</decisions>`

	_, err := ParseDecisions(raw, batchOf("cluster-1"), cluster.NewCategoryMap())
	if err == nil {
		t.Fatal("expected error for unknown target_id")
	}
}

func TestParseDecisionsAssignKnownTarget(t *testing.T) {
	cats := cluster.NewCategoryMap()
	cats.Put(&cluster.Category{ID: "CAT-001"})

	raw := `<decisions>
  <decision>
    <id>cluster-1</id>
    <action>assign</action>
    <target_id>CAT-001</target_id>
    <description_update>refreshed description</description_update>
  </decision>
</decisions>`

	decisions, err := ParseDecisions(raw, batchOf("cluster-1"), cats)
	if err != nil {
		t.Fatalf("ParseDecisions() error = %v", err)
	}
	if decisions[0].DescriptionUpdate != "refreshed description" {
		t.Errorf("DescriptionUpdate = %q", decisions[0].DescriptionUpdate)
	}
}

func TestParseDecisionsSubdivide(t *testing.T) {
	raw := `<decisions>
  <decision>
    <id>cluster-1</id>
    <action>subdivide</action>
    <k_value>4</k_value>
  </decision>
</decisions>`

	decisions, err := ParseDecisions(raw, batchOf("cluster-1"), cluster.NewCategoryMap())
	if err != nil {
		t.Fatalf("ParseDecisions() error = %v", err)
	}
	if decisions[0].KValue != 4 {
		t.Errorf("KValue = %d, want 4", decisions[0].KValue)
	}
}

func TestParseDecisionsSubdivideMultiRefRejected(t *testing.T) {
	raw := `<decisions>
  <decision>
    <id>cluster-1,cluster-2</id>
    <action>subdivide</action>
    <k_value>3</k_value>
  </decision>
</decisions>`

	_, err := ParseDecisions(raw, batchOf("cluster-1", "cluster-2"), cluster.NewCategoryMap())
	if err == nil {
		t.Fatal("expected error: subdivide must reference exactly one cluster")
	}
}

func TestParseDecisionsSubdivideNonIntegerKValue(t *testing.T) {
	raw := `<decisions>
  <decision>
    <id>cluster-1</id>
    <action>subdivide</action>
    <k_value>many</k_value>
  </decision>
</decisions>`

	_, err := ParseDecisions(raw, batchOf("cluster-1"), cluster.NewCategoryMap())
	if err == nil {
		t.Fatal("expected error for non-integer k_value")
	}
}

func TestParseDecisionsMissingCluster(t *testing.T) {
	raw := `<decisions>
  <decision>
    <id>cluster-1</id>
    <action>create</action>
    <description>x</description>
  </decision>
</decisions>`

	_, err := ParseDecisions(raw, batchOf("cluster-1", "cluster-2"), cluster.NewCategoryMap())
	if err == nil {
		t.Fatal("expected error: cluster-2 omitted from decision set")
	}
}

func TestParseDecisionsDuplicateCluster(t *testing.T) {
	raw := `<decisions>
  <decision>
    <id>cluster-1</id>
    <action>create</action>
    <description>x</description>
  </decision>
  <decision>
    <id>cluster-1</id>
    <action>create</action>
    <description>y</description>
  </decision>
</decisions>`

	_, err := ParseDecisions(raw, batchOf("cluster-1"), cluster.NewCategoryMap())
	if err == nil {
		t.Fatal("expected error: cluster-1 referenced twice")
	}
}

func TestParseDecisionsUnknownAction(t *testing.T) {
	raw := `<decisions>
  <decision>
    <id>cluster-1</id>
    <action>delete</action>
  </decision>
</decisions>`

	_, err := ParseDecisions(raw, batchOf("cluster-1"), cluster.NewCategoryMap())
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestParseDecisionsStripsLeadingText(t *testing.T) {
	raw := `Sure, here are my decisions:

<decisions>
  <decision>
    <id>cluster-1</id>
    <action>create</action>
    <description>x</description>
  </decision>
</decisions>`

	decisions, err := ParseDecisions(raw, batchOf("cluster-1"), cluster.NewCategoryMap())
	if err != nil {
		t.Fatalf("ParseDecisions() error = %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("got %d decisions, want 1", len(decisions))
	}
}

func TestParseDecisionsEscapesBareAmpersand(t *testing.T) {
	raw := `<decisions>
  <decision>
    <id>cluster-1</id>
    <action>create</action>
    <description>Rock & Roll fan club questions</description>
  </decision>
</decisions>`

	decisions, err := ParseDecisions(raw, batchOf("cluster-1"), cluster.NewCategoryMap())
	if err != nil {
		t.Fatalf("ParseDecisions() error = %v", err)
	}
	if !strings.Contains(decisions[0].Description, "Rock & Roll") {
		t.Errorf("Description = %q, want bare & preserved in decoded text", decisions[0].Description)
	}
}

func TestParseDecisionsNoRootElement(t *testing.T) {
	_, err := ParseDecisions("I refuse to answer in XML.", batchOf("cluster-1"), cluster.NewCategoryMap())
	if err == nil {
		t.Fatal("expected error: no <decisions> root found")
	}
}
