package tensor

import "testing"

func pkGovJurisdiction() Jurisdiction {
	applicable := map[Domain]bool{
		DomainAML: true, DomainKYC: true, DomainSanctions: true, DomainTax: true,
	}
	return Jurisdiction{ID: "pk", ApplicableDomains: applicable}
}

func TestNewFreezesNonApplicableDomains(t *testing.T) {
	tr := New(pkGovJurisdiction(), nil)

	cell, err := tr.Get(DomainCyber)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cell.State != NotApplicable {
		t.Fatalf("non-applicable domain state = %s, want NotApplicable", cell.State)
	}

	if err := tr.Set(DomainCyber, Compliant, nil, nil); err == nil {
		t.Fatal("expected error mutating a frozen cell")
	}
}

func TestSetAndOverallStatus(t *testing.T) {
	tr := New(pkGovJurisdiction(), nil)

	if status := tr.OverallStatus(); status != Pending {
		t.Fatalf("fresh tensor overall status = %s, want Pending", status)
	}

	if err := tr.Set(DomainAML, Compliant, nil, nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := tr.Set(DomainKYC, Compliant, nil, nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	if status := tr.OverallStatus(); status != Pending {
		t.Fatalf("overall status with remaining pending cells = %s, want Pending", status)
	}

	if err := tr.Set(DomainSanctions, Compliant, nil, nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := tr.Set(DomainTax, NonCompliant, nil, nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	if status := tr.OverallStatus(); status != NonCompliant {
		t.Fatalf("overall status = %s, want NonCompliant", status)
	}

	blocking := tr.BlockingDomains()
	if len(blocking) != 1 || blocking[0] != string(DomainTax) {
		t.Fatalf("blocking domains = %v, want [Tax]", blocking)
	}
}

func TestApplyAttestationsIgnoresUnknowns(t *testing.T) {
	tr := New(pkGovJurisdiction(), nil)

	tr.ApplyAttestations(map[string]AttestationApplication{
		"AML":          {Status: "Compliant"},
		"NotADomain":   {Status: "Compliant"},
		"KYC":          {Status: "NotAState"},
		string(DomainCyber): {Status: "Compliant"}, // frozen cell, must stay NotApplicable
	}, nil)

	aml, err := tr.Get(DomainAML)
	if err != nil {
		t.Fatalf("get AML: %v", err)
	}
	if aml.State != Compliant {
		t.Fatalf("AML state = %s, want Compliant", aml.State)
	}

	kyc, err := tr.Get(DomainKYC)
	if err != nil {
		t.Fatalf("get KYC: %v", err)
	}
	if kyc.State != Pending {
		t.Fatalf("KYC state should be unchanged by unknown status, got %s", kyc.State)
	}

	cyber, err := tr.Get(DomainCyber)
	if err != nil {
		t.Fatalf("get Cyber: %v", err)
	}
	if cyber.State != NotApplicable {
		t.Fatalf("frozen cell mutated: %s", cyber.State)
	}
}

func TestCommitIsOrderIndependent(t *testing.T) {
	tr1 := New(pkGovJurisdiction(), nil)
	tr2 := New(pkGovJurisdiction(), nil)

	if err := tr1.Set(DomainAML, Compliant, nil, nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := tr1.Set(DomainKYC, Compliant, nil, nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := tr2.Set(DomainKYC, Compliant, nil, nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := tr2.Set(DomainAML, Compliant, nil, nil); err != nil {
		t.Fatalf("set: %v", err)
	}

	d1, err := tr1.Commit()
	if err != nil {
		t.Fatalf("commit 1: %v", err)
	}
	d2, err := tr2.Commit()
	if err != nil {
		t.Fatalf("commit 2: %v", err)
	}
	if d1 != d2 {
		t.Fatalf("commit digest depends on mutation order: %s vs %s", d1, d2)
	}
}
