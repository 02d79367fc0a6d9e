package reports

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/fdg312/nutriplan/internal/plans"
)

const maxHistoryRows = 30

var ErrUnsupportedFormat = errors.New("unsupported format")

// Generator renders plan exports.
type Generator struct {
	now func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// Generate renders the report in the given format.
func (g *Generator) Generate(format string, r PlanReport) ([]byte, error) {
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = g.now().UTC()
	}
	switch format {
	case FormatPDF:
		return g.generatePDF(r)
	case FormatCSV:
		return g.generateCSV(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// generateCSV writes one row per historical target, newest first.
func (g *Generator) generateCSV(r PlanReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"start_date", "daily_calories", "protein_g", "carbs_g", "fat_g", "reasoning"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, h := range r.History {
		row := []string{
			h.StartDate,
			strconv.Itoa(h.DailyCalories),
			strconv.Itoa(h.ProteinG),
			strconv.Itoa(h.CarbsG),
			strconv.Itoa(h.FatG),
			h.Reasoning,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) generatePDF(r PlanReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	fontName := "Helvetica"

	pdf.AddPage()
	pdf.SetFont(fontName, "B", 16)
	title := r.Plan.PlanName
	if title == "" {
		title = "Nutrition plan"
	}
	pdf.Cell(0, 10, tr(title))
	pdf.Ln(8)

	pdf.SetFont(fontName, "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated %s, plan created %s, status %s",
		r.GeneratedAt.Format("2006-01-02 15:04 MST"),
		r.Plan.CreatedAt.Format("2006-01-02"),
		r.Plan.Status))
	pdf.Ln(10)

	s := Summarize(r)

	section(pdf, fontName, "Metabolism")
	line(pdf, tr, "Strategy", s.Strategy)
	line(pdf, tr, "BMR", s.BMR)
	line(pdf, tr, "TDEE", s.TDEE)
	line(pdf, tr, "Goal calories", s.Goal)
	line(pdf, tr, "Adjustment", s.Adjustment)
	line(pdf, tr, "Method", s.Method)
	if s.Snapshots > 0 {
		line(pdf, tr, "History", fmt.Sprintf("%d snapshots, %d to %d kcal", s.Snapshots, s.CaloriesMin, s.CaloriesMax))
	}
	pdf.Ln(6)

	section(pdf, fontName, "Daily targets")
	t := r.Effective
	line(pdf, tr, "Calories", fmt.Sprintf("%d kcal (%s)", t.Calories, r.Source))
	line(pdf, tr, "Protein", fmt.Sprintf("%d g", t.ProteinG))
	line(pdf, tr, "Carbs", fmt.Sprintf("%d g", t.CarbsG))
	line(pdf, tr, "Fat", fmt.Sprintf("%d g", t.FatG))
	if t.FiberG > 0 {
		line(pdf, tr, "Fiber", fmt.Sprintf("%d g", t.FiberG))
	}
	if t.WaterLiters > 0 {
		line(pdf, tr, "Water", fmt.Sprintf("%.1f l", t.WaterLiters))
	}
	pdf.Ln(6)

	if m := r.Plan.MicronutrientTargets; m != nil {
		section(pdf, fontName, "Micronutrients")
		line(pdf, tr, "Vitamin C", fmt.Sprintf("%d mg", m.VitaminCMg))
		line(pdf, tr, "Vitamin D", fmt.Sprintf("%d IU", m.VitaminDIU))
		line(pdf, tr, "Calcium", fmt.Sprintf("%d mg", m.CalciumMg))
		line(pdf, tr, "Iron", fmt.Sprintf("%d mg", m.IronMg))
		line(pdf, tr, "Magnesium", fmt.Sprintf("%d mg", m.MagnesiumMg))
		line(pdf, tr, "Zinc", fmt.Sprintf("%d mg", m.ZincMg))
		pdf.Ln(6)
	}

	if fs := r.Plan.FoodSuggestions; fs != nil {
		section(pdf, fontName, "Per-meal portions")
		pdf.SetFont(fontName, "", 9)
		for _, sg := range fs.Protein {
			line(pdf, tr, "Protein", sg.FoodName+": "+sg.Description)
		}
		for _, sg := range fs.Carbs {
			line(pdf, tr, "Carbs", sg.FoodName+": "+sg.Description)
		}
		for _, sg := range fs.Fat {
			line(pdf, tr, "Fat", sg.FoodName+": "+sg.Description)
		}
		pdf.Ln(6)
	}

	section(pdf, fontName, "Target history")
	drawHistoryTable(pdf, tr, fontName, r.History)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, fontName, title string) {
	pdf.SetFont(fontName, "B", 13)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
	pdf.SetFont(fontName, "", 10)
}

func line(pdf *gofpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.CellFormat(40, 6, tr(label), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr(value), "", 1, "L", false, 0, "")
}

// drawHistoryTable draws the most recent snapshots
func drawHistoryTable(pdf *gofpdf.Fpdf, tr func(string) string, fontName string, history []plans.HistoricalTarget) {
	pdf.SetFont(fontName, "", 8)

	pdf.CellFormat(25, 6, "Start", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "kcal", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Protein", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Carbs", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Fat", "1", 0, "C", false, 0, "")
	pdf.CellFormat(85, 6, "Reasoning", "1", 1, "C", false, 0, "")

	if len(history) > maxHistoryRows {
		history = history[:maxHistoryRows]
	}
	for _, h := range history {
		reason := h.Reasoning
		if len(reason) > 60 {
			reason = reason[:57] + "..."
		}
		pdf.CellFormat(25, 6, h.StartDate, "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, strconv.Itoa(h.DailyCalories), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, strconv.Itoa(h.ProteinG), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, strconv.Itoa(h.CarbsG), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, strconv.Itoa(h.FatG), "1", 0, "C", false, 0, "")
		pdf.CellFormat(85, 6, tr(reason), "1", 1, "L", false, 0, "")
	}
}

// Summarize builds the header block. Missing metabolic data renders as
// "No data".
func Summarize(r PlanReport) Summary {
	s := Summary{
		Strategy:   r.Plan.FitnessStrategy,
		BMR:        noData,
		TDEE:       noData,
		Goal:       noData,
		Adjustment: noData,
		Method:     noData,
		Snapshots:  len(r.History),
	}
	if d := r.Plan.MetabolicData; d != nil {
		s.BMR = fmt.Sprintf("%d kcal", d.BMR)
		s.TDEE = fmt.Sprintf("%d kcal (x%.3g, %s)", d.TDEE, d.ActivityMultiplier, d.ActivityLevel)
		s.Goal = fmt.Sprintf("%d kcal", d.GoalCalories)
		s.Adjustment = fmt.Sprintf("%+d kcal", d.GoalAdjustment)
		if d.GoalAdjustmentReason != "" {
			s.Adjustment += ", " + d.GoalAdjustmentReason
		}
		s.Method = d.CalculationMethod
	}
	for i, h := range r.History {
		if i == 0 || h.DailyCalories < s.CaloriesMin {
			s.CaloriesMin = h.DailyCalories
		}
		if h.DailyCalories > s.CaloriesMax {
			s.CaloriesMax = h.DailyCalories
		}
	}
	return s
}

const noData = "No data"
