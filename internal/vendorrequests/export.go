package vendorrequests

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/da-luiz/Clear-Chain/internal/platform/httpx"
)

const (
	exportSheet = "Vendor Requests"
	exportLimit = 5000
)

var exportHeader = []string{
	"Request Number",
	"Status",
	"Company Name",
	"Legal Name",
	"Requested By",
	"Department",
	"Expected Contract Value",
	"Currency",
	"Primary Contact",
	"Primary Contact Email",
	"Bank Name",
	"Rejection Reason",
	"Additional Info Required",
	"Vendor ID",
	"Created At",
	"Updated At",
}

// ExportWorkbook renders requests as an xlsx workbook.
func ExportWorkbook(items []VendorRequest) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
	if err := f.SetCellStyle(exportSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, req := range items {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := exportRow(req)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeader))
	if err := f.SetColWidth(exportSheet, "A", lastCol, 20); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func exportRow(req VendorRequest) []any {
	var value any
	if req.ExpectedContractValue != nil {
		value = req.ExpectedContractValue.InexactFloat64()
	}
	var vendorID any
	if req.VendorID != nil {
		vendorID = *req.VendorID
	}
	return []any{
		req.RequestNumber,
		string(req.Status),
		req.CompanyName,
		req.LegalName,
		req.RequestedByUserID,
		req.RequestingDepartmentID,
		value,
		req.Currency,
		req.PrimaryContactName,
		req.PrimaryContactEmail,
		req.BankName,
		req.RejectionReason,
		req.AdditionalInfoRequired,
		vendorID,
		req.CreatedAt.UTC().Format(time.RFC3339),
		req.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter.Offset = 0
	filter.Limit = exportLimit
	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "export vendor requests", err)
		return
	}
	data, err := ExportWorkbook(page.Items)
	if err != nil {
		h.fail(w, "render vendor request export", err)
		return
	}
	name := fmt.Sprintf("vendor-requests-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
