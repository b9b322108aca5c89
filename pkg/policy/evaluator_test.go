package policy

import "testing"

func ctxFor(vendor string, vlan float64) *EvaluationContext {
	return NewEvaluationContext(map[string]any{
		"node": map[string]any{
			"vendor": vendor,
		},
		"derived": map[string]any{
			"vlan_id": vlan,
		},
	})
}

func TestEvaluateSatisfied(t *testing.T) {
	rule, err := ParseRule(`WHEN node.vendor == "cisco" THEN ASSERT node.vendor IS "cisco"`, 1)
	if err != nil {
		t.Fatal(err)
	}
	e := NewEvaluator()
	result := e.Evaluate(rule, ctxFor("cisco", 10))
	if result.Verdict != Satisfied {
		t.Errorf("expected Satisfied, got %v (%v)", result.Verdict, result.Err)
	}
}

func TestEvaluateFieldNotFound(t *testing.T) {
	rule, err := ParseRule(`WHEN node.missing_field == "x" THEN SET a TO 1`, 1)
	if err != nil {
		t.Fatal(err)
	}
	e := NewEvaluator()
	result := e.Evaluate(rule, ctxFor("cisco", 10))
	if result.Verdict != EvalError || !IsMissing(result.Err) {
		t.Errorf("expected EvalError wrapping ErrFieldNotFound, got %v / %v", result.Verdict, result.Err)
	}
}

func TestEvaluateIsNullMatchesMissing(t *testing.T) {
	rule, err := ParseRule(`WHEN node.missing IS NULL THEN SET a TO 1`, 1)
	if err != nil {
		t.Fatal(err)
	}
	e := NewEvaluator()
	result := e.Evaluate(rule, ctxFor("cisco", 10))
	if result.Verdict != Satisfied {
		t.Errorf("expected IS NULL on a missing field to be Satisfied, got %v (%v)", result.Verdict, result.Err)
	}
}

func TestEvaluateOrderingAndMatches(t *testing.T) {
	rule, err := ParseRule(`WHEN derived.vlan_id >= 5 AND node.vendor MATCHES /^cis.*/ THEN SET a TO 1`, 1)
	if err != nil {
		t.Fatal(err)
	}
	e := NewEvaluator()
	result := e.Evaluate(rule, ctxFor("cisco", 10))
	if result.Verdict != Satisfied {
		t.Errorf("expected Satisfied, got %v (%v)", result.Verdict, result.Err)
	}
}

func TestEvaluateBatchOrdersByPriorityThenIndex(t *testing.T) {
	low, _ := ParseRule(`WHEN node.vendor == "cisco" THEN SET a TO 1`, 1)
	low.Priority = PriorityLow
	crit, _ := ParseRule(`WHEN node.vendor == "cisco" THEN SET b TO 2`, 2)
	crit.Priority = PriorityCritical

	e := NewEvaluator()
	batch := e.EvaluateBatch([]*Rule{low, crit}, map[string]*EvaluationContext{"n1": ctxFor("cisco", 1)})

	if len(batch) != 1 || len(batch[0].Results) != 2 {
		t.Fatalf("unexpected batch shape: %+v", batch)
	}
	if batch[0].Results[0].Rule != crit {
		t.Error("expected the Critical-priority rule to evaluate first")
	}
}

func TestExecuteSetWritesOverlay(t *testing.T) {
	rule, _ := ParseRule(`WHEN node.vendor == "cisco" THEN SET node.mtu TO 9000`, 1)
	overlay := Overlay{}
	_, _, err := Execute(rule, ctxFor("cisco", 1), overlay)
	if err != nil {
		t.Fatal(err)
	}
	if overlay["node.mtu"] != float64(9000) {
		t.Errorf("overlay = %+v, want node.mtu=9000", overlay)
	}
}
