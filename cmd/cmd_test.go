package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"example.com/backstage/services/erpgateway/internal/catalog"
	"example.com/backstage/services/erpgateway/internal/contracts"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	require.NoError(t, versionCmd.RunE(versionCmd, nil))

	var info map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, "dev", info["version"])
	assert.NotEmpty(t, info["go"])
}

func TestReadJSONFromStdin(t *testing.T) {
	c := &cobra.Command{}
	c.SetIn(strings.NewReader(`{"fromWarehouse":"01","toWarehouse":"02","lines":[{"itemCode":"A1","quantity":2}]}`))

	var req catalog.StockTransferRequest
	require.NoError(t, readJSON(c, "-", &req))
	assert.Equal(t, "02", req.ToWarehouse)
	require.Len(t, req.Lines, 1)
	assert.Equal(t, 2.0, req.Lines[0].Quantity)
}

func TestReadJSONRejectsUnknownFields(t *testing.T) {
	c := &cobra.Command{}
	c.SetIn(strings.NewReader(`{"bpCode":"C1","itemGroup":100}`))

	var req contracts.ContractRequest
	assert.Error(t, readJSON(c, "-", &req))
	assert.Error(t, readJSON(c, "", &req))
	assert.Error(t, readJSON(c, "/does/not/exist.json", &req))
}

func TestListFilterFromFlags(t *testing.T) {
	t.Cleanup(func() {
		contractsListFlags.startDate, contractsListFlags.bpCode, contractsListFlags.status = "", "", ""
	})

	contractsListFlags.startDate = "2024-02-01"
	contractsListFlags.bpCode = "C1"
	contractsListFlags.status = "on hold"
	filter, err := listFilter()
	require.NoError(t, err)
	require.NotNil(t, filter.StartDate)
	assert.Equal(t, "2024-02-01", filter.StartDate.Format("2006-01-02"))
	assert.Equal(t, "C1", filter.BPCode)
	assert.Equal(t, contracts.StatusOnHold, filter.Status)

	contractsListFlags.status = "closed"
	_, err = listFilter()
	assert.Error(t, err)

	contractsListFlags.status = ""
	contractsListFlags.startDate = "01.02.2024"
	_, err = listFilter()
	assert.Error(t, err)
}

func TestPageQueryFromFlags(t *testing.T) {
	t.Cleanup(func() { pageFlags.updatedAfter, pageFlags.skip, pageFlags.top = "", 0, 0 })

	pageFlags.updatedAfter = "2024-03-01T10:00:00+02:00"
	pageFlags.skip = 40
	q, err := pageQuery()
	require.NoError(t, err)
	require.NotNil(t, q.UpdatedAfter)
	assert.Equal(t, 8, q.UpdatedAfter.UTC().Hour())
	assert.Equal(t, 40, q.Skip)

	pageFlags.updatedAfter = "yesterday"
	_, err = pageQuery()
	assert.Error(t, err)
}
