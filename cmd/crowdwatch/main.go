// Command crowdwatch feeds a JPEG frame source into the crowd detector
// and publishes detection events over MQTT.
//
// Frames come either from a directory of sequentially named JPEG files or
// from an RTP/JPEG (RFC 2435) stream received on a UDP port.
package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
	"github.com/pion/rtp"

	"github.com/turboshun/crowd-detection/detect"
	"github.com/turboshun/crowd-detection/intake/rtpjpeg"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// detectionEvent is the message published per processed frame
type detectionEvent struct {
	Time        string  `json:"time"`
	AreaPct     float64 `json:"area_pct"`
	Sensitivity int     `json:"sensitivity"`
	Detected    bool    `json:"detected"`
}

type publisher struct {
	client mqtt.Client
	topic  string
}

func newPublisher(broker, topic string) (*publisher, error) {
	if broker == "" {
		return nil, nil
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("crowdwatch").
		SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", broker, err)
	}
	return &publisher{client: client, topic: topic}, nil
}

func (p *publisher) publish(ev detectionEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not encode event: %v\n", err)
		return
	}
	if p == nil {
		fmt.Println(string(payload))
		return
	}
	p.client.Publish(p.topic, 0, false, payload)
}

func main() {
	dir := flag.String("dir", "", "Directory of JPEG frames to replay")
	interval := flag.Duration("interval", 200*time.Millisecond, "Delay between replayed frames")
	listen := flag.String("listen", "", "UDP address to receive RTP/JPEG on (e.g. :5004)")
	broker := flag.String("broker", "", "MQTT broker URL (events go to stdout when empty)")
	topic := flag.String("topic", "crowdwatch/detection", "MQTT topic for detection events")
	sensitivity := flag.Int("sensitivity", 1, "Detection sensitivity, 1 (least) to 256 (most)")
	area := flag.Float64("area", 10.0, "Detected-area percentage at which an event is marked detected")
	auto := flag.Bool("auto", false, "Calibrate sensitivity from the first seconds of input")
	flag.Parse()

	if (*dir == "") == (*listen == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -dir and -listen is required")
		os.Exit(2)
	}

	pub, err := newPublisher(*broker, *topic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	d := detect.NewDetector()
	d.SetSensitivity(*sensitivity)
	d.SetDetectedAreaThreshold(*area)

	d.OnArea = func(pct float64) {
		pub.publish(detectionEvent{
			Time:        time.Now().UTC().Format(time.RFC3339Nano),
			AreaPct:     pct,
			Sensitivity: d.Sensitivity(),
			Detected:    pct >= d.DetectedAreaThreshold(),
		})
	}
	d.OnAutoSensitivity = func(s int) {
		if s == 0 {
			fmt.Fprintln(os.Stderr, "sensitivity calibration failed")
			return
		}
		fmt.Fprintf(os.Stderr, "calibrated sensitivity: %d\n", s)
		d.SetSensitivity(s)
	}

	if *auto {
		d.StartAutoSensitivity()
	}

	if *dir != "" {
		err = replayDirectory(d, *dir, *interval)
	} else {
		err = receiveRTP(d, *listen)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// replayDirectory feeds the *.jpg files of dir in name order
func replayDirectory(d *detect.Detector, dir string, interval time.Duration) error {
	names, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no .jpg files in %s", dir)
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		d.ProcessFrame(data, nil)
		time.Sleep(interval)
	}
	return nil
}

// receiveRTP feeds depacketized RTP/JPEG images from a UDP socket
func receiveRTP(d *detect.Detector, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	var dec rtpjpeg.Decoder
	dec.Init()

	buf := make([]byte, 65536)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			fmt.Fprintf(os.Stderr, "bad RTP packet: %v\n", err)
			continue
		}

		img, err := dec.Decode(&pkt)
		if err != nil {
			if !errors.Is(err, rtpjpeg.ErrMorePacketsNeeded) &&
				!errors.Is(err, rtpjpeg.ErrNonStartingPacketAndNoPrevious) {
				fmt.Fprintf(os.Stderr, "dropped frame: %v\n", err)
			}
			continue
		}
		d.ProcessFrame(img, nil)
	}
}
