package pubx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"

	"github.com/pubxai/analytics-client-go/util/task"
)

// RemoteConfig is the subset of configuration the collector may update at
// runtime.
type RemoteConfig struct {
	PubxId       string `json:"pubxId"`
	SamplingRate int    `json:"samplingRate"`
	MaxBatchSize string `json:"maxBatchSize"`
}

type ConfigUpdateTask interface {
	Start(stop <-chan struct{}) <-chan *RemoteConfig
}

// ConfigUpdateHttpTask polls the collector's config endpoint on a fixed
// interval and emits each fetched configuration.
type ConfigUpdateHttpTask struct {
	task       *task.TickerTask
	configChan chan *RemoteConfig
}

func NewConfigUpdateHttpTask(client *http.Client, clk clock.Clock, pubxId, endpoint, refreshDelay string) (*ConfigUpdateHttpTask, error) {
	refreshDuration, err := time.ParseDuration(refreshDelay)
	if err != nil {
		return nil, fmt.Errorf("fail to parse configuration_refresh_delay: %v", err)
	}

	queryURL := fmt.Sprintf("%s/config?%s", endpoint, url.Values{"pubxId": []string{pubxId}}.Encode())

	configChan := make(chan *RemoteConfig)
	var tr *task.TickerTask
	tr = task.NewTickerTaskFromFunc(clk, refreshDuration, func() error {
		rc, err := fetchConfig(client, queryURL)
		if err != nil {
			glog.Warningf("[pubx] fail to fetch remote configuration: %v", err)
			return err
		}
		// The consumer may have stopped between the fetch and the hand-off;
		// the unbuffered send must not strand this goroutine.
		select {
		case configChan <- rc:
		case <-tr.Done():
		}
		return nil
	})

	return &ConfigUpdateHttpTask{
		task:       tr,
		configChan: configChan,
	}, nil
}

func (t *ConfigUpdateHttpTask) Start(stop <-chan struct{}) <-chan *RemoteConfig {
	go t.task.Start()

	go func() {
		<-stop
		t.task.Stop()
	}()

	return t.configChan
}

func fetchConfig(client *http.Client, endpoint string) (*RemoteConfig, error) {
	res, err := client.Get(endpoint)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config endpoint returned %d", res.StatusCode)
	}

	rc := RemoteConfig{}
	if err := json.NewDecoder(res.Body).Decode(&rc); err != nil {
		return nil, err
	}
	return &rc, nil
}
