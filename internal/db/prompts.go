package db

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sketchbook/internal/game"
)

// LoadPromptCards reads card_num,order,word rows from a CSV and upserts them
// into the prompts table.
func LoadPromptCards(conn *gorm.DB, path string) (int, error) {
	if conn == nil {
		return 0, nil
	}
	prompts, err := ReadPromptCards(path)
	if err != nil {
		return 0, err
	}
	inserted := 0
	for _, prompt := range prompts {
		entry := Prompt{CardNum: prompt.CardNum, Order: prompt.Order, Word: prompt.Word}
		err := conn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "card_num"}, {Name: "sort_order"}},
			DoUpdates: clause.AssignmentColumns([]string{"word", "updated_at"}),
		}).Create(&entry).Error
		if err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// ReadPromptCards parses a prompt card CSV. The header row is skipped and
// blank rows are ignored.
func ReadPromptCards(path string) ([]game.Prompt, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var prompts []game.Prompt
	for i, row := range rows {
		if i == 0 || len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("line %d: want card_num,order,word", i+1)
		}
		cardNum, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: card_num: %w", i+1, err)
		}
		order, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: order: %w", i+1, err)
		}
		if order < 1 || order > 6 {
			return nil, fmt.Errorf("line %d: order %d outside 1..6", i+1, order)
		}
		word := strings.TrimSpace(row[2])
		if word == "" {
			continue
		}
		prompts = append(prompts, game.Prompt{CardNum: cardNum, Order: order, Word: word})
	}
	return prompts, nil
}
