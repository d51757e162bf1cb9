// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/SoftbearStudios/hexvoxel/server/cloud/db"
	"github.com/SoftbearStudios/hexvoxel/server/cloud/fs"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/credentials/ec2rolecreds"
	"github.com/aws/aws-sdk-go/aws/ec2metadata"
	"github.com/aws/aws-sdk-go/aws/session"
)

const AWSProfile = "hexvoxel"

type UserData struct {
	Region string
	Stage  string
}

// AWS is the DynamoDB store and S3 snapshot bucket of a stage.
type AWS struct {
	Database   *db.DynamoDBDatabase
	Filesystem *fs.S3Filesystem
	UserData
}

// NewAWS connects to a stage. Empty region or stage are read from EC2 user data.
func NewAWS(region, stage string) (*AWS, error) {
	data := UserData{Region: region, Stage: stage}
	if data.Region == "" || data.Stage == "" {
		loaded, err := loadUserData()
		if err != nil {
			return nil, fmt.Errorf("no region and stage configured: %w", err)
		}
		if data.Region == "" {
			data.Region = loaded.Region
		}
		if data.Stage == "" {
			data.Stage = loaded.Stage
		}
	}

	sess, err := getAWSSession(data.Region)
	if err != nil {
		return nil, err
	}

	database, err := db.NewDynamoDBDatabase(sess, data.Stage)
	if err != nil {
		return nil, err
	}
	filesystem, err := fs.NewS3Filesystem(sess, data.Stage)
	if err != nil {
		return nil, err
	}

	return &AWS{Database: database, Filesystem: filesystem, UserData: data}, nil
}

func getAWSSession(region string) (*session.Session, error) {
	usr, osErr := user.Current()
	if osErr != nil {
		return nil, osErr
	}
	path := fmt.Sprintf("%s/.aws/credentials", usr.HomeDir)
	var creds *credentials.Credentials
	if _, statErr := os.Stat(path); statErr == nil {
		creds = credentials.NewSharedCredentials(path, AWSProfile)
	} else {
		creds = credentials.NewCredentials(&ec2rolecreds.EC2RoleProvider{Client: ec2metadata.New(session.Must(session.NewSession()))})
	}
	return session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: creds,
	})
}

func loadUserData() (data *UserData, err error) {
	client := http.Client{Timeout: time.Second / 2}
	response, err := client.Get("http://169.254.169.254/latest/user-data/")
	if err != nil {
		return
	}
	defer response.Body.Close()

	var buf bytes.Buffer
	if _, err = buf.ReadFrom(response.Body); err != nil {
		return
	}

	return parseUserData(buf.String())
}

// parseUserData reads NAME="value" lines.
func parseUserData(userData string) (*UserData, error) {
	data := &UserData{}

	for _, variable := range strings.Split(userData, "\n") {
		equalsIndex := strings.IndexRune(variable, '=')
		if equalsIndex == -1 {
			continue
		}
		name := strings.Trim(variable[:equalsIndex], " ")
		value := strings.Trim(variable[equalsIndex+1:], "\" ")

		switch name {
		case "REGION":
			data.Region = value
		case "STAGE":
			data.Stage = value
		}
	}

	if data.Region == "" {
		return nil, errors.New("missing region")
	}
	if data.Stage == "" {
		return nil, errors.New("missing stage")
	}
	return data, nil
}
