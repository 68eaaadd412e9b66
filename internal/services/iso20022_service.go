package services

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/bankportal/backend/internal/config"
	"github.com/bankportal/backend/internal/models"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
)

const (
	Pacs008MessageType = "pacs.008.001.08"
	Pacs002MessageType = "pacs.002.001.08"
)

// ISO20022Service renders transfers to external accounts as interbank
// settlement messages.
type ISO20022Service struct {
	currency string
	bic      string
	name     string
	now      func() time.Time
}

func NewISO20022Service(cfg config.LedgerConfig) *ISO20022Service {
	return &ISO20022Service{
		currency: cfg.Currency,
		bic:      cfg.SettlementBIC,
		name:     cfg.SettlementName,
		now:      time.Now,
	}
}

// CreatePacs008 creates a pacs.008 FIToFICustomerCreditTransfer message for
// an external transfer. The creditor is addressed by its account code.
func (iso *ISO20022Service) CreatePacs008(transfer *models.Transfer) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if !transfer.External() {
		return nil, fmt.Errorf("%w: transfer %s settles internally", ErrInvalidState, transfer.Reference)
	}

	msgId := uuid.New().String()
	creDtTm := iso.now().UTC()
	settlementDate := creDtTm

	// The schema carries amounts as float64; this is the only place money
	// leaves decimal form.
	amount := pacs_v08.ActiveCurrencyAndAmount{
		Ccy:   common.ActiveCurrencyCode(iso.currency),
		Value: models.RoundMoney(transfer.Amount).InexactFloat64(),
	}

	creditor := transfer.BeneficiaryName
	if creditor == "" {
		creditor = transfer.DestinationCode
	}

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:             common.Max35Text(msgId),
			CreDtTm:           common.ISODateTime(creDtTm),
			NbOfTxs:           "1",
			TtlIntrBkSttlmAmt: &amount,
			IntrBkSttlmDt:     (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(transfer.Reference)}[0],
					EndToEndId: common.Max35Text(transfer.Reference),
					TxId:       &[]common.Max35Text{common.Max35Text(transfer.Reference)}[0],
				},
				IntrBkSttlmAmt: amount,
				IntrBkSttlmDt:  (*common.ISODate)(&settlementDate),
				ChrgBr:         "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(iso.bic)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(iso.name + " " + transfer.SourceCode)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(transfer.DestinationCode),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(creditor)}[0],
				},
			},
		},
	}

	return doc, nil
}

// StatusCode maps a transfer status to its ISO 20022 transaction status.
func StatusCode(status models.TransferStatus) string {
	switch status {
	case models.TransferCompleted:
		return "ACSC"
	case models.TransferPending:
		return "PDNG"
	case models.TransferFailed, models.TransferCancelled:
		return "RJCT"
	}
	return "RJCT"
}

// CreatePacs002 creates a pacs.002 payment status report for the transfer.
func (iso *ISO20022Service) CreatePacs002(transfer *models.Transfer) (*pacs_v08.FIToFIPaymentStatusReportV08, error) {
	msgId := uuid.New().String()
	creDtTm := iso.now().UTC()
	status := StatusCode(transfer.Status)

	doc := &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
		},
		TxInfAndSts: []pacs_v08.PaymentTransaction80{
			{
				OrgnlInstrId:    &[]common.Max35Text{common.Max35Text(transfer.Reference)}[0],
				OrgnlEndToEndId: &[]common.Max35Text{common.Max35Text(transfer.Reference)}[0],
				OrgnlTxId:       &[]common.Max35Text{common.Max35Text(transfer.Reference)}[0],
				TxSts:           &[]pacs_v08.ExternalPaymentTransactionStatus1Code{pacs_v08.ExternalPaymentTransactionStatus1Code(status)}[0],
			},
		},
	}

	return doc, nil
}

// ConvertToXML converts ISO20022 document to XML string
func (iso *ISO20022Service) ConvertToXML(doc any) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}

// SettlementMessage builds the pacs.008 XML queued for an external transfer.
func (iso *ISO20022Service) SettlementMessage(transfer *models.Transfer) ([]byte, error) {
	doc, err := iso.CreatePacs008(transfer)
	if err != nil {
		return nil, err
	}
	xmlData, err := iso.ConvertToXML(doc)
	if err != nil {
		return nil, err
	}
	return []byte(xmlData), nil
}
