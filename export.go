package leosim

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
)

// scalarHeader lists the per-node scalar columns of a results file.
var scalarHeader = []string{
	"node", "type",
	"PacketsSent", "PacketsReceived", "PacketsDropped", "PacketsForwarded",
	"Throughput_bps", "ForwardThroughput_bps",
	"PacketDeliveryRatio", "ForwardSuccessRate",
}

// WriteResults emits the per-node scalars followed by the metric vectors as
// CSV. Rows come out satellites first, then ground stations, both in
// registration order, so two runs of the same scenario produce identical
// bytes.
func WriteResults(w io.Writer, s *Sim) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(scalarHeader); err != nil {
		return err
	}
	for _, sat := range s.Satellites() {
		st := sat.Stats()
		row := scalarRow(sat.Label(), "satellite", st, st.Forwarded)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	for _, gs := range s.GroundStations() {
		st := gs.Stats()
		row := scalarRow(gs.Label(), "ground", st, st.Received)
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	if err := cw.Write([]string{"node", "vector", "samples"}); err != nil {
		return err
	}
	for _, node := range s.allNodes() {
		st := node.Stats()
		if len(st.EndToEndDelay) == 0 {
			continue
		}
		delays := make([]string, len(st.EndToEndDelay))
		for i, d := range st.EndToEndDelay {
			delays[i] = fmtFloat(d)
		}
		hops := make([]string, len(st.HopCounts))
		for i, h := range st.HopCounts {
			hops[i] = strconv.Itoa(h)
		}
		if err := cw.Write([]string{node.Label(), "endToEndDelay", strings.Join(delays, ";")}); err != nil {
			return err
		}
		if err := cw.Write([]string{node.Label(), "hopCount", strings.Join(hops, ";")}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteResultsFile writes the results CSV to the given path.
func WriteResultsFile(path string, s *Sim) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteResults(f, s)
}

func scalarRow(label, kind string, st *NodeStats, success uint64) []string {
	return []string{
		label, kind,
		strconv.FormatUint(st.Sent, 10),
		strconv.FormatUint(st.Received, 10),
		strconv.FormatUint(st.Dropped, 10),
		strconv.FormatUint(st.Forwarded, 10),
		fmtFloat(st.Throughput()),
		fmtFloat(st.ForwardThroughput()),
		fmtFloat(st.DeliveryRatio(success)),
		fmtFloat(st.DeliveryRatio(st.Forwarded)),
	}
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
