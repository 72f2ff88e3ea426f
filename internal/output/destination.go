package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Destination receives serialized analysis records grouped by topic. One
// topic maps to one file (or Kafka topic) per run.
type Destination interface {
	WriteMessage(topic string, msg []byte) error
	Close() error
}

type CSVOutput struct {
	basePath string
	folder   string
	files    map[string]*csv.Writer
	handles  map[string]*os.File
	headers  map[string][]string
}

func NewCSVOutput(basePath, folder string) *CSVOutput {
	return &CSVOutput{
		basePath: basePath,
		folder:   folder,
		files:    make(map[string]*csv.Writer),
		handles:  make(map[string]*os.File),
		headers:  make(map[string][]string),
	}
}

func (c *CSVOutput) WriteMessage(topic string, msg []byte) error {
	var record map[string]interface{}
	if err := json.Unmarshal(msg, &record); err != nil {
		return err
	}

	w, ok := c.files[topic]
	if !ok {
		fullPath := filepath.Join(c.basePath, c.folder)
		if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
			return err
		}
		file, err := os.Create(filepath.Join(fullPath, topic+".csv"))
		if err != nil {
			return err
		}
		w = csv.NewWriter(file)
		c.files[topic] = w
		c.handles[topic] = file

		headers := headerOrder(record)
		if err := w.Write(headers); err != nil {
			return err
		}
		c.headers[topic] = headers
	}

	row := make([]string, len(c.headers[topic]))
	for i, header := range c.headers[topic] {
		value, ok := record[header]
		if !ok || value == nil {
			row[i] = ""
		} else {
			row[i] = fmt.Sprintf("%v", value)
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func headerOrder(record map[string]interface{}) []string {
	var headers []string
	for key := range record {
		headers = append(headers, key)
	}
	sort.Strings(headers)
	return headers
}

func (c *CSVOutput) Close() error {
	for topic, w := range c.files {
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
		if err := c.handles[topic].Close(); err != nil {
			return err
		}
	}
	return nil
}

type JSONOutput struct {
	basePath string
	folder   string
	files    map[string]*os.File
}

func NewJSONOutput(basePath, folder string) *JSONOutput {
	return &JSONOutput{
		basePath: basePath,
		folder:   folder,
		files:    make(map[string]*os.File),
	}
}

func (j *JSONOutput) WriteMessage(topic string, msg []byte) error {
	file, ok := j.files[topic]
	if !ok {
		fullPath := filepath.Join(j.basePath, j.folder)
		if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
			return err
		}
		var err error
		file, err = os.Create(filepath.Join(fullPath, topic+".json"))
		if err != nil {
			return err
		}
		j.files[topic] = file
	}

	if _, err := file.Write(msg); err != nil {
		return err
	}
	_, err := file.WriteString("\n")
	return err
}

func (j *JSONOutput) Close() error {
	for _, file := range j.files {
		if err := file.Close(); err != nil {
			return err
		}
	}
	return nil
}

type ConsoleOutput struct{}

func (c *ConsoleOutput) WriteMessage(topic string, msg []byte) error {
	_, err := fmt.Fprintf(os.Stdout, "[%s] %s\n", topic, string(msg))
	return err
}

func (c *ConsoleOutput) Close() error {
	return nil
}
