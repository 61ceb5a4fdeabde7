package receipt_test

import (
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tenant-billing-api/internal/domain/entity"
	"github.com/jhoicas/tenant-billing-api/internal/infrastructure/receipt"
)

func sampleReceipt() entity.Receipt {
	return entity.Receipt{
		WorkflowID: "wf-1",
		TenantID:   "t-1",
		FromPlan:   "starter",
		ToPlan:     "enterprise",
		Lines: []entity.ReceiptLine{
			{Description: "Prorrateo enterprise", Amount: decimal.RequireFromString("120.00")},
			{Description: "Créditos aplicados", Amount: decimal.RequireFromString("-50.00")},
		},
		Total:            decimal.RequireFromString("70.00"),
		Currency:         "BRL",
		PaymentReference: "pay_wf-1:1",
		IssuedAt:         time.Date(2025, 1, 22, 10, 0, 0, 0, time.UTC),
	}
}

func TestSeal_EsDeterministaYConPrefijo(t *testing.T) {
	s := receipt.NewSealer()
	a, err := s.Seal(sampleReceipt())
	require.NoError(t, err)
	b, err := s.Seal(sampleReceipt())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, receipt.DigestPrefix))
	assert.Len(t, strings.TrimPrefix(a, receipt.DigestPrefix), 64)
}

func TestSeal_CambiaSiCambiaElMonto(t *testing.T) {
	s := receipt.NewSealer()
	orig, err := s.Seal(sampleReceipt())
	require.NoError(t, err)

	altered := sampleReceipt()
	altered.Total = decimal.RequireFromString("70.01")
	other, err := s.Seal(altered)
	require.NoError(t, err)

	assert.NotEqual(t, orig, other)
}

func TestSeal_IgnoraElDigestPrevio(t *testing.T) {
	s := receipt.NewSealer()
	r := sampleReceipt()
	d1, err := s.Seal(r)
	require.NoError(t, err)

	r.Digest = d1
	ok, err := s.Verify(r, d1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuildXML_Estructura(t *testing.T) {
	raw, err := receipt.BuildXML(sampleReceipt())
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(raw))
	root := doc.SelectElement("Receipt")
	require.NotNil(t, root)
	assert.Equal(t, "wf-1", root.SelectAttrValue("workflowId", ""))
	assert.Len(t, root.FindElements("./Lines/Line"), 2)

	total := root.SelectElement("Total")
	require.NotNil(t, total)
	assert.Equal(t, "70.00", total.Text())
	assert.Equal(t, "BRL", total.SelectAttrValue("currency", ""))
}
