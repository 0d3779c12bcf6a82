package models

import (
	"bytes"
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/utils"
)

const reportSheetName = "Daily Logs"

var reportHeaders = []string{
	"Date", "Log Id", "Supplier", "Description",
	"Ordered", "Picked", "Received", "Status",
	"Unit Price", "Amount",
}

// ExportDailyLogReport renders the logs of an inclusive date range as an
// xlsx workbook, one row per log with a totals row at the bottom.
func ExportDailyLogReport(ctx context.Context, from string, to string) ([]byte, error) {
	from, err := validateLogDate(from)
	if err != nil {
		return nil, err
	}
	to, err = validateLogDate(to)
	if err != nil {
		return nil, err
	}
	if to < from {
		from, to = to, from
	}

	db := config.GetDB()
	var logs []*DailyLog
	if err := db.WithContext(ctx).
		Where("log_date BETWEEN ? AND ?", from, to).
		Order("log_date ASC, id ASC").
		Find(&logs).Error; err != nil {
		return nil, utils.NewPersistenceError(err)
	}

	supplierNames := map[int]string{}
	productDescriptions := map[int]string{}
	{
		supplierIds := []int{}
		productIds := []int{}
		for _, l := range logs {
			if l.SupplierId != 0 {
				supplierIds = append(supplierIds, l.SupplierId)
			}
			productIds = append(productIds, l.ProductId)
		}
		if len(supplierIds) > 0 {
			var suppliers []*Supplier
			if err := db.WithContext(ctx).
				Where("id IN ?", utils.UniqueSlice(supplierIds)).
				Find(&suppliers).Error; err != nil {
				return nil, utils.NewPersistenceError(err)
			}
			for _, s := range suppliers {
				supplierNames[s.ID] = s.Name
			}
		}
		if len(productIds) > 0 {
			var products []*Product
			if err := db.WithContext(ctx).
				Where("id IN ?", utils.UniqueSlice(productIds)).
				Find(&products).Error; err != nil {
				return nil, utils.NewPersistenceError(err)
			}
			for _, p := range products {
				productDescriptions[p.ID] = p.Description
			}
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(reportSheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, err
	}
	for col, header := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(reportSheetName, cell, header)
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(reportHeaders), 1)
	f.SetCellStyle(reportSheetName, "A1", endHeader, headerStyle)

	totalAmount := decimal.Zero
	totalOrdered := 0
	totalReceived := 0
	for i, l := range logs {
		row := i + 2
		supplier := supplierNames[l.SupplierId]
		if supplier == "" {
			supplier = UnassignedSupplierName
		}
		amount := l.Price.Mul(decimal.NewFromInt(int64(l.ReceivedQty.Sum()))).Round(2)

		values := []interface{}{
			l.LogDate,
			l.ID,
			supplier,
			productDescriptions[l.ProductId],
			l.OrderedQty.Describe(),
			l.PickedQty.Describe(),
			l.ReceivedQty.Describe(),
			string(l.Status),
			l.Price.InexactFloat64(),
			amount.InexactFloat64(),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(reportSheetName, cell, value)
		}

		totalAmount = totalAmount.Add(amount)
		totalOrdered += l.OrderedQty.Sum()
		totalReceived += l.ReceivedQty.Sum()
	}

	totalsRow := len(logs) + 2
	setCell := func(col int, value interface{}) {
		cell, _ := excelize.CoordinatesToCellName(col, totalsRow)
		f.SetCellValue(reportSheetName, cell, value)
	}
	setCell(1, fmt.Sprintf("Totals (%d logs)", len(logs)))
	setCell(5, totalOrdered)
	setCell(7, totalReceived)
	setCell(10, totalAmount.InexactFloat64())

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportShopSnapshot serializes the whole shop dataset as one JSON document
// for offline backup. Logs are unbounded; everything else is small.
func ExportShopSnapshot(ctx context.Context) (string, error) {
	data := map[string]interface{}{}

	suppliers, err := ListSuppliers(ctx)
	if err != nil {
		return "", err
	}
	data["suppliers"] = suppliers

	products, err := ListProducts(ctx)
	if err != nil {
		return "", err
	}
	data["products"] = products

	db := config.GetDB()
	var logs []*DailyLog
	if err := db.WithContext(ctx).Order("log_date ASC, id ASC").Find(&logs).Error; err != nil {
		return "", utils.NewPersistenceError(err)
	}
	data["dailyLogs"] = logs

	orders, err := ListPurchaseOrders(ctx, 0)
	if err != nil {
		return "", err
	}
	data["purchaseOrders"] = orders

	return utils.MarshalToJSON(data)
}
