package main

import (
	"time"

	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/spf13/cobra"
)

func addParamsFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("tax-year", 0, "Tax year of the session")
	f.String("filing-status", string(domain.FilingSingle), "Filing status (single, married_filing_jointly, married_filing_separately, head_of_household, qualifying_surviving_spouse)")
	f.Bool("second-filer", false, "The return has a second filer")
	f.StringToInt("slot", nil, "Instances of a repeatable family, e.g. --slot w2=2")
}

func paramsFromFlags(cmd *cobra.Command) (domain.SessionParams, error) {
	f := cmd.Flags()
	year, err := f.GetInt("tax-year")
	if err != nil {
		return domain.SessionParams{}, err
	}
	status, _ := f.GetString("filing-status")
	second, _ := f.GetBool("second-filer")
	slots, err := f.GetStringToInt("slot")
	if err != nil {
		return domain.SessionParams{}, err
	}
	return domain.SessionParams{
		TaxYear:        year,
		FilingStatus:   domain.FilingStatus(status),
		HasSecondFiler: second,
		Slots:          slots,
	}, nil
}

// defaultTaxYear is the year being filed during the current season.
func defaultTaxYear() int {
	return time.Now().Year() - 1
}
